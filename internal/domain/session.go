package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// Session is the feed view controller for a single client. It owns the feed
// cache, the view state, and the store subscription, and it is the only
// writer of all three: every mutation runs on the session's event loop, so
// snapshot replacement, filter changes, and load-more actions are serialized
// without locks.
//
// Consumers receive read-only Frame values; the cache itself never escapes
// except as a copy.
type Session struct {
	source FeedSource
	logger *slog.Logger

	cmds   chan func()
	frames chan Frame

	// Loop-owned state. Only the Run goroutine touches these.
	cache  []*Post
	view   ViewState
	author Author
	notice string
	sub    Subscription
}

// NewSession creates a session over the given feed source. Run must be
// called before any command is issued.
func NewSession(source FeedSource, logger *slog.Logger) *Session {
	return &Session{
		source: source,
		logger: logger,
		cmds:   make(chan func()),
		frames: make(chan Frame, 1),
	}
}

// Frames yields a rendered frame after every visible-set recomputation.
// Delivery is coalescing: if the consumer lags, only the latest frame is
// kept, which is safe because each frame fully replaces the previous one.
func (s *Session) Frames() <-chan Frame {
	return s.frames
}

// Run drives the session until ctx is cancelled. It establishes the initial
// subscription immediately; the feed is visible to unauthenticated sessions
// too.
func (s *Session) Run(ctx context.Context) error {
	s.view = NewViewState()
	s.resubscribe(ctx)

	for {
		var (
			snaps <-chan []Record
			errs  <-chan error
		)
		if s.sub != nil {
			snaps = s.sub.Snapshots()
			errs = s.sub.Errors()
		}

		select {
		case <-ctx.Done():
			s.release()
			return ctx.Err()

		case records, ok := <-snaps:
			if !ok {
				// The subscription ended underneath us. Retain the
				// last-known-good cache, drain any final error left on the
				// handle, and tell the user the feed stopped updating.
				s.sub = nil
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						s.logger.Error("feed subscription ended", "error", err)
						s.notice = fmt.Sprintf("Failed to load feed data: %v", err)
					}
				default:
				}
				if s.notice == "" {
					s.notice = "Failed to load feed data: feed subscription ended"
				}
				s.push()
				continue
			}
			s.replaceCache(records)

		case err, ok := <-errs:
			if !ok {
				continue
			}
			// The cache keeps its last-known-good value; the failure is
			// surfaced as a non-fatal notice.
			s.logger.Error("feed subscription error", "error", err)
			s.notice = fmt.Sprintf("Failed to load feed data: %v", err)
			s.push()

		case cmd := <-s.cmds:
			cmd()
		}
	}
}

// SetIdentity records an identity transition and re-establishes the feed
// subscription under it. The previous subscription is always released first;
// a session holds at most one live handle.
func (s *Session) SetIdentity(ctx context.Context, author Author) {
	s.do(ctx, func() {
		s.author = author
		s.resubscribe(ctx)
	})
}

// SetFilter switches the active language filter, rewinding to page one.
func (s *Session) SetFilter(ctx context.Context, filter Filter) {
	s.do(ctx, func() {
		s.view.SetFilter(filter)
		s.push()
	})
}

// LoadMore deepens the view by one page.
func (s *Session) LoadMore(ctx context.Context) {
	s.do(ctx, func() {
		s.view.LoadMore()
		s.push()
	})
}

// Author returns the identity the session currently publishes under.
func (s *Session) Author(ctx context.Context) Author {
	var author Author
	s.do(ctx, func() { author = s.author })
	return author
}

// PostByID looks up a cached post for the detail view. The returned copy is
// the caller's to keep.
func (s *Session) PostByID(ctx context.Context, id string) (*Post, bool) {
	var (
		post  Post
		found bool
	)
	s.do(ctx, func() {
		for _, p := range s.cache {
			if p.ID == id {
				post, found = *p, true
				return
			}
		}
	})
	if !found {
		return nil, false
	}
	return &post, true
}

// CurrentFrame renders the present visible set on demand.
func (s *Session) CurrentFrame(ctx context.Context) Frame {
	var frame Frame
	s.do(ctx, func() { frame = s.render() })
	return frame
}

// Snapshot returns a copy of the full cache, most recent first.
func (s *Session) Snapshot(ctx context.Context) []*Post {
	var posts []*Post
	s.do(ctx, func() {
		posts = make([]*Post, len(s.cache))
		copy(posts, s.cache)
	})
	return posts
}

// do runs fn on the event loop and waits for it, giving callers serialized
// access to loop-owned state.
func (s *Session) do(ctx context.Context, fn func()) {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// replaceCache installs a full snapshot: materialize, sort, replace
// wholesale, rewind pagination, recompute. Never a partial patch.
func (s *Session) replaceCache(records []Record) {
	s.cache = MaterializeSnapshot(records, s.logger)
	s.view.ResetPage()
	s.notice = ""
	s.push()
}

func (s *Session) resubscribe(ctx context.Context) {
	s.release()

	// No source means the store never initialized; the session keeps
	// serving its (empty) last-known-good cache.
	if s.source == nil {
		s.notice = "Failed to load feed data: store unavailable"
		s.push()
		return
	}

	sub, err := s.source.Subscribe(ctx)
	if err != nil {
		s.logger.Error("feed subscription failed", "error", err)
		s.notice = fmt.Sprintf("Failed to load feed data: %v", err)
		s.push()
		return
	}
	s.sub = sub
}

func (s *Session) release() {
	if s.sub == nil {
		return
	}
	if err := s.sub.Close(); err != nil {
		s.logger.Warn("closing feed subscription", "error", err)
	}
	s.sub = nil
}

func (s *Session) render() Frame {
	visible, hasMore := s.view.Visible(s.cache)
	frame := RenderFrame(visible, hasMore, s.view.Filter)
	frame.Notice = s.notice
	return frame
}

// push publishes the current frame, displacing any undelivered one.
func (s *Session) push() {
	frame := s.render()
	for {
		select {
		case s.frames <- frame:
			return
		default:
			select {
			case <-s.frames:
			default:
			}
		}
	}
}
