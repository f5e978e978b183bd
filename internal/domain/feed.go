package domain

import (
	"log/slog"
	"sort"
)

// DefaultPageSize is how many posts a single feed page holds.
const DefaultPageSize = 5

// MaterializeSnapshot converts a full store snapshot into the feed cache
// ordering: every record is validated into a Post and the result is sorted
// descending by CreatedAt. Records with an unresolved timestamp rank as
// oldest. Malformed records are dropped and logged, never rendered.
func MaterializeSnapshot(records []Record, logger *slog.Logger) []*Post {
	posts := make([]*Post, 0, len(records))
	for _, rec := range records {
		post, err := MaterializePost(rec)
		if err != nil {
			logger.Warn("quarantined malformed record", "id", rec.ID, "error", err)
			continue
		}
		posts = append(posts, post)
	}

	// Zero CreatedAt naturally sorts as oldest under time ordering. Stable
	// keeps delivery order for equal timestamps.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

// VisiblePosts derives the visible subset of the cache for the given filter
// and pagination depth: the first pageCount*pageSize posts of the filtered
// candidate set, head first. hasMore reports whether the candidate set
// extends past the visible slice. The cache is never mutated.
func VisiblePosts(cache []*Post, filter Filter, pageCount, pageSize int) (visible []*Post, hasMore bool) {
	candidates := cache
	if filter != FilterAll {
		candidates = make([]*Post, 0, len(cache))
		for _, p := range cache {
			if filter.Matches(p) {
				candidates = append(candidates, p)
			}
		}
	}

	// Bound before multiplying: an absurd pagination depth clamps to the
	// full candidate set instead of overflowing the product.
	end := 0
	if pageCount > 0 && pageSize > 0 {
		end = len(candidates)
		if pageCount <= (end-1)/pageSize {
			end = pageCount * pageSize
		}
	}

	visible = make([]*Post, end)
	copy(visible, candidates[:end])
	return visible, end < len(candidates)
}

// ViewState tracks the user-controlled portion of the feed view. PageCount
// starts at 1 and resets to 1 whenever the filter changes or the cache is
// replaced; it only ever grows by single load-more steps.
type ViewState struct {
	Filter    Filter
	PageCount int
	PageSize  int
}

// NewViewState returns the default view: all languages, first page.
func NewViewState() ViewState {
	return ViewState{Filter: FilterAll, PageCount: 1, PageSize: DefaultPageSize}
}

// SetFilter switches the active language filter and rewinds to the first
// page, so the user starts at the top of the newly filtered set.
func (v *ViewState) SetFilter(f Filter) {
	v.Filter = f
	v.PageCount = 1
}

// LoadMore deepens the view by exactly one page.
func (v *ViewState) LoadMore() {
	v.PageCount++
}

// ResetPage rewinds pagination after a cache replacement; stale depth must
// not drive the load-more affordance against new data.
func (v *ViewState) ResetPage() {
	v.PageCount = 1
}

// Visible applies the view state to a cache snapshot.
func (v *ViewState) Visible(cache []*Post) ([]*Post, bool) {
	return VisiblePosts(cache, v.Filter, v.PageCount, v.PageSize)
}
