// Package analysis builds structured-output LLM requests for the content
// analysis features and routes them through the credential-hiding proxy.
// These are side paths: they never touch post data in the store and run
// without coordination with feed updates.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Analysis failures. Callers render these as a terminal error view for the
// one request; they never escape as unhandled faults.
var (
	// ErrSuperseded marks a response that arrived after a newer request for
	// the same requester was started; its result must be discarded.
	ErrSuperseded = errors.New("analysis request superseded")

	// ErrMalformedResponse covers responses missing the expected structured
	// fields.
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// Part, Content, Schema, and GenerationConfig mirror the generateContent
// wire format. Schema declares the strict JSON shape the model must emit.
type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

type GenerationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

// GenerateRequest is the full payload forwarded verbatim by the proxy.
type GenerateRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewStructuredRequest assembles a JSON-mode request from a user query, a
// system prompt, and the declared output shape.
func NewStructuredRequest(userQuery, systemPrompt string, schema *Schema) *GenerateRequest {
	return &GenerateRequest{
		Contents:          []Content{{Parts: []Part{{Text: userQuery}}}},
		SystemInstruction: &Content{Parts: []Part{{Text: systemPrompt}}},
		GenerationConfig: &GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}
}

// Client sends generation requests to the proxy endpoint and extracts the
// structured JSON text from the response.
type Client struct {
	proxyURL   string
	httpClient *http.Client
}

// NewClient creates a client against the given proxy URL.
func NewClient(proxyURL string) *Client {
	return &Client{
		proxyURL: proxyURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Generate posts the request and returns the raw structured JSON emitted by
// the model (candidates[0].content.parts[0].text).
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return nil, fmt.Errorf("%w: empty structured text", ErrMalformedResponse)
	}
	return []byte(text), nil
}
