package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Author is the resolved identity a post is published under.
type Author struct {
	// ID is the stable identity string. Empty means unauthenticated.
	ID string

	// DisplayName is the author's chosen name, possibly empty.
	DisplayName string

	// Email is the author's email, empty for anonymous accounts.
	Email string
}

// Name derives the display name recorded on a post: the chosen name, else
// the email local part, else "Anonymous".
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if at := strings.IndexByte(a.Email, '@'); at > 0 {
		return a.Email[:at]
	}
	return "Anonymous"
}

// Publisher validates and submits new posts to the document store. A
// published post becomes visible only once the store echoes it back through
// the feed subscription; there is no local optimistic insert.
type Publisher struct {
	appender RecordAppender
	logger   *slog.Logger
}

// NewPublisher creates a Publisher. The appender may be nil when the store
// failed to initialize; every publish then fails with ErrNotReady until a
// store handle exists.
func NewPublisher(appender RecordAppender, logger *slog.Logger) *Publisher {
	return &Publisher{appender: appender, logger: logger}
}

// Ready reports write-readiness for the given author.
func (p *Publisher) Ready(author Author) bool {
	return p.appender != nil && author.ID != ""
}

// Publish checks preconditions in order (title, content, language,
// write-readiness), each its own rejected outcome, then appends the post.
// The store assigns the id and timestamp; the returned id is only a receipt.
func (p *Publisher) Publish(ctx context.Context, author Author, title, content string, language Language) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", ErrEmptyTitle
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	if !language.Valid() {
		return "", ErrBadLanguage
	}
	if !p.Ready(author) {
		return "", ErrNotReady
	}

	fields := map[string]any{
		"userId":      author.ID,
		"authorName":  author.Name(),
		"authorEmail": author.Email,
		"title":       title,
		"content":     content,
		"language":    string(language),
	}

	id, err := p.appender.Append(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("append post: %w", err)
	}

	p.logger.Info("post published", "id", id, "author", author.ID, "language", language)
	return id, nil
}
