package domain

// PostView is the render projection of a Post: everything a client needs to
// draw a feed card, precomputed. Markup itself is the client's concern.
type PostView struct {
	ID              string `json:"id"`
	AuthorName      string `json:"authorName"`
	AuthorInitial   string `json:"authorInitial"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	Language        string `json:"language"`
	DisplayLanguage string `json:"displayLanguage"`
	AvatarColor     string `json:"avatarColor"`
	PublishedAt     string `json:"publishedAt"`
}

// Frame is one complete rendering of the feed view, produced after every
// cache replacement or view state change.
type Frame struct {
	Posts       []PostView `json:"posts"`
	HasMore     bool       `json:"hasMore"`
	Filter      Filter     `json:"filter"`
	FilterLabel string     `json:"filterLabel"`
	// EmptyNotice is set when there is nothing to show: a welcome message for
	// an empty feed, or a no-matches message for an empty filtered view.
	EmptyNotice string `json:"emptyNotice,omitempty"`
	// Notice carries a non-fatal status message, e.g. a subscription error.
	Notice string `json:"notice,omitempty"`
}

// RenderPosts projects posts into their view form. It is a pure function of
// its input: rendering the same posts twice yields the same views.
func RenderPosts(posts []*Post) []PostView {
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = RenderPost(p)
	}
	return views
}

// RenderPost projects a single post.
func RenderPost(p *Post) PostView {
	name := p.AuthorName
	if name == "" {
		name = "Anonymous"
	}

	published := ""
	if !p.CreatedAt.IsZero() {
		published = p.CreatedAt.Format("02 Jan, 03:04 PM")
	}

	return PostView{
		ID:              p.ID,
		AuthorName:      name,
		AuthorInitial:   p.AuthorInitial(),
		Title:           p.Title,
		Content:         p.Content,
		Language:        string(p.Language),
		DisplayLanguage: p.Language.Display(),
		AvatarColor:     avatarColor(p.Language),
		PublishedAt:     published,
	}
}

// avatarColor picks the author avatar hue by post language.
func avatarColor(lang Language) string {
	switch lang {
	case LanguageEnglish:
		return "primary"
	case LanguageHindi:
		return "indigo"
	default:
		return "pink"
	}
}

// RenderFrame builds the full feed frame for a visible set.
func RenderFrame(visible []*Post, hasMore bool, filter Filter) Frame {
	frame := Frame{
		Posts:       RenderPosts(visible),
		HasMore:     hasMore,
		Filter:      filter,
		FilterLabel: filter.Label(),
	}
	if len(visible) == 0 {
		if filter == FilterAll {
			frame.EmptyNotice = "Welcome! Be the first to post!"
		} else {
			frame.EmptyNotice = "No posts found for the selected language."
		}
	}
	return frame
}
