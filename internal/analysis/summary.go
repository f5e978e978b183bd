package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/spaceandstories/community-feed/internal/domain"
)

const summarySystemPrompt = "You are a helpful and empathetic community moderator. " +
	"Summarize theme, emotions, warning signs, and solutions. JSON output only."

// PostSummary is the structured analysis of a single post.
type PostSummary struct {
	Summary        string   `json:"summary"`
	KeyTakeaways   []string `json:"keyTakeaways"`
	WarningSigns   []string `json:"warningSigns"`
	SolutionsTaken []string `json:"solutionsTaken"`
}

var summarySchema = &Schema{
	Type: "OBJECT",
	Properties: map[string]*Schema{
		"summary":        {Type: "STRING"},
		"keyTakeaways":   {Type: "ARRAY", Items: &Schema{Type: "STRING"}},
		"warningSigns":   {Type: "ARRAY", Items: &Schema{Type: "STRING"}},
		"solutionsTaken": {Type: "ARRAY", Items: &Schema{Type: "STRING"}},
	},
	Required: []string{"summary", "keyTakeaways", "warningSigns", "solutionsTaken"},
}

// SummaryRequester generates post summaries. Starting a new request
// supersedes any in-flight one: the older response is discarded instead of
// being rendered over a view the user has already left.
type SummaryRequester struct {
	client *Client
	gen    atomic.Uint64
}

// NewSummaryRequester creates a requester over the given client.
func NewSummaryRequester(client *Client) *SummaryRequester {
	return &SummaryRequester{client: client}
}

// Summarize analyzes one post. Returns ErrSuperseded if a newer Summarize
// call started while this one was in flight.
func (r *SummaryRequester) Summarize(ctx context.Context, post *domain.Post) (*PostSummary, error) {
	gen := r.gen.Add(1)

	query := fmt.Sprintf("Analyze: %q Content: %q", post.Title, post.Content)
	req := NewStructuredRequest(query, summarySystemPrompt, summarySchema)

	raw, err := r.client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if r.gen.Load() != gen {
		return nil, ErrSuperseded
	}

	var summary PostSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if summary.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}
	return &summary, nil
}
