package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spaceandstories/community-feed/internal/domain"
)

// ErrEmptySituation is returned before any network call is made.
var ErrEmptySituation = errors.New("situation text must not be empty")

// ComfortPoem and ComfortBook are the two recommendations the matcher asks
// the model for.
type ComfortPoem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ComfortBook struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Summary string `json:"summary"`
}

// ComfortRecommendation is the structured comfort-matcher result.
type ComfortRecommendation struct {
	Poem ComfortPoem `json:"poem"`
	Book ComfortBook `json:"book"`
}

var comfortSchema = &Schema{
	Type: "OBJECT",
	Properties: map[string]*Schema{
		"poem": {
			Type: "OBJECT",
			Properties: map[string]*Schema{
				"title":   {Type: "STRING"},
				"content": {Type: "STRING"},
			},
			Required: []string{"title", "content"},
		},
		"book": {
			Type: "OBJECT",
			Properties: map[string]*Schema{
				"title":   {Type: "STRING"},
				"author":  {Type: "STRING"},
				"summary": {Type: "STRING"},
			},
			Required: []string{"title", "author", "summary"},
		},
	},
	Required: []string{"poem", "book"},
}

// ComfortRequester matches a described feeling to a poem and a book.
type ComfortRequester struct {
	client *Client
	gen    atomic.Uint64
}

// NewComfortRequester creates a requester over the given client.
func NewComfortRequester(client *Client) *ComfortRequester {
	return &ComfortRequester{client: client}
}

// Recommend asks for one poem and one book fitting the situation, in the
// given language. Returns ErrSuperseded if a newer Recommend call started
// while this one was in flight.
func (r *ComfortRequester) Recommend(ctx context.Context, situation string, language domain.Language) (*ComfortRecommendation, error) {
	if strings.TrimSpace(situation) == "" {
		return nil, ErrEmptySituation
	}

	gen := r.gen.Add(1)

	systemPrompt := fmt.Sprintf(
		"Compassionate curator. Recommend 1 poem and 1 book based on feeling. Language: %s. JSON output only.",
		language,
	)
	query := fmt.Sprintf("Feeling: %q", situation)
	req := NewStructuredRequest(query, systemPrompt, comfortSchema)

	raw, err := r.client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if r.gen.Load() != gen {
		return nil, ErrSuperseded
	}

	var rec ComfortRecommendation
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if rec.Poem.Title == "" || rec.Book.Title == "" {
		return nil, fmt.Errorf("%w: missing recommendation fields", ErrMalformedResponse)
	}
	return &rec, nil
}
