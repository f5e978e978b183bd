package domain

import (
	"context"
	"errors"
	"testing"
)

type recordingAppender struct {
	calls  int
	fields map[string]any
}

func (r *recordingAppender) Append(_ context.Context, fields map[string]any) (string, error) {
	r.calls++
	r.fields = fields
	return "assigned-id", nil
}

func TestPublishRejectsEmptyTitle(t *testing.T) {
	appender := &recordingAppender{}
	p := NewPublisher(appender, testLogger())

	_, err := p.Publish(context.Background(), Author{ID: "u1"}, "   ", "content", LanguageEnglish)
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if appender.calls != 0 {
		t.Error("no store write may be attempted for a rejected publish")
	}
}

func TestPublishRejectsEmptyContent(t *testing.T) {
	appender := &recordingAppender{}
	p := NewPublisher(appender, testLogger())

	_, err := p.Publish(context.Background(), Author{ID: "u1"}, "title", "\t\n", LanguageEnglish)
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if appender.calls != 0 {
		t.Error("no store write may be attempted for a rejected publish")
	}
}

func TestPublishRequiresReadiness(t *testing.T) {
	// Unresolved identity.
	appender := &recordingAppender{}
	p := NewPublisher(appender, testLogger())
	if _, err := p.Publish(context.Background(), Author{}, "t", "c", LanguageEnglish); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady without identity, got %v", err)
	}

	// Uninitialized store.
	p = NewPublisher(nil, testLogger())
	if _, err := p.Publish(context.Background(), Author{ID: "u1"}, "t", "c", LanguageEnglish); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady without store, got %v", err)
	}
	if appender.calls != 0 {
		t.Error("no store write may be attempted when not ready")
	}
}

func TestPublishSubmitsFields(t *testing.T) {
	appender := &recordingAppender{}
	p := NewPublisher(appender, testLogger())

	author := Author{ID: "u1", DisplayName: "Asha", Email: "asha@example.com"}
	id, err := p.Publish(context.Background(), author, "A title", "Some content", LanguageHindi)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id != "assigned-id" {
		t.Errorf("expected the store-assigned id, got %q", id)
	}

	if appender.fields["authorName"] != "Asha" {
		t.Errorf("authorName = %v", appender.fields["authorName"])
	}
	if appender.fields["language"] != "hindi" {
		t.Errorf("language = %v", appender.fields["language"])
	}
	if _, ok := appender.fields["timestamp"]; ok {
		t.Error("timestamp is store-assigned; the client must not supply one")
	}
}

func TestAuthorName(t *testing.T) {
	tests := []struct {
		author Author
		want   string
	}{
		{Author{DisplayName: "Asha"}, "Asha"},
		{Author{Email: "rumi@example.com"}, "rumi"},
		{Author{}, "Anonymous"},
		{Author{Email: "@broken"}, "Anonymous"},
	}
	for _, tt := range tests {
		if got := tt.author.Name(); got != tt.want {
			t.Errorf("Name(%+v) = %q, want %q", tt.author, got, tt.want)
		}
	}
}
