package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Language is the language a post is written in.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageBengali Language = "bengali"
)

// Valid reports whether l is one of the supported post languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageBengali:
		return true
	}
	return false
}

// Display returns the capitalized English name of the language, or "Unknown"
// for anything outside the supported set.
func (l Language) Display() string {
	switch l {
	case LanguageEnglish:
		return "English"
	case LanguageHindi:
		return "Hindi"
	case LanguageBengali:
		return "Bengali"
	}
	return "Unknown"
}

// Filter selects a subset of posts by language. FilterAll matches every post.
type Filter string

const FilterAll Filter = "all"

var filterLabels = map[Filter]string{
	FilterAll:               "All",
	Filter(LanguageEnglish): "English",
	Filter(LanguageHindi):   "Hindi (हिंदी)",
	Filter(LanguageBengali): "Bengali (বাংলা)",
}

// Label returns the user-facing label for the filter, falling back to "All"
// for unrecognized values.
func (f Filter) Label() string {
	if label, ok := filterLabels[f]; ok {
		return label
	}
	return filterLabels[FilterAll]
}

// ParseFilter normalizes a raw filter string. Empty input means FilterAll;
// anything else must be "all" or a supported language.
func ParseFilter(raw string) (Filter, error) {
	if raw == "" || raw == string(FilterAll) {
		return FilterAll, nil
	}
	if Language(raw).Valid() {
		return Filter(raw), nil
	}
	return "", fmt.Errorf("unknown language filter: %q", raw)
}

// Matches reports whether a post passes the filter.
func (f Filter) Matches(p *Post) bool {
	return f == FilterAll || Language(f) == p.Language
}

// Post is a published community post. Every Post originates from the document
// store: the ID and CreatedAt are store-assigned, never fabricated locally.
type Post struct {
	// ID is the opaque, store-assigned document id.
	ID string

	// AuthorID is the stable identity string of the author.
	AuthorID string

	// AuthorName is the author's display name captured at publish time.
	AuthorName string

	// AuthorEmail is the author's email, if any.
	AuthorEmail string

	Title   string
	Content string

	// Language the post is written in.
	Language Language

	// CreatedAt is the server-assigned publish time. It can be the zero value
	// for a record observed before the store timestamp resolved; such posts
	// sort as oldest.
	CreatedAt time.Time
}

// AuthorInitial returns the uppercased first rune of the author's display
// name, falling back to the author id, then to "?".
func (p *Post) AuthorInitial() string {
	name := p.AuthorName
	if name == "" {
		name = p.AuthorID
	}
	for _, r := range name {
		return string(unicode.ToUpper(r))
	}
	return "?"
}

// Record is an untyped document as delivered by the store: a field map plus
// the store-assigned id and timestamp.
type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// MaterializePost validates a raw store record and converts it into a Post.
// Records missing a title, content, or a recognized language are rejected so
// that malformed documents are quarantined instead of reaching rendering.
func MaterializePost(rec Record) (*Post, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("record has no id")
	}

	title := stringField(rec.Fields, "title")
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("record %s: missing title", rec.ID)
	}

	content := stringField(rec.Fields, "content")
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("record %s: missing content", rec.ID)
	}

	lang := Language(stringField(rec.Fields, "language"))
	if !lang.Valid() {
		return nil, fmt.Errorf("record %s: unknown language %q", rec.ID, lang)
	}

	return &Post{
		ID:          rec.ID,
		AuthorID:    stringField(rec.Fields, "userId"),
		AuthorName:  stringField(rec.Fields, "authorName"),
		AuthorEmail: stringField(rec.Fields, "authorEmail"),
		Title:       title,
		Content:     content,
		Language:    lang,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
