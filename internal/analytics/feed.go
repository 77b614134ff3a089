package analytics

import "github.com/noah-isme/lecture-intel-api/internal/models"

// PageSize is the number of items revealed per page.
const PageSize = 10

// FeedState is the feed's loading state.
type FeedState int

const (
	FeedIdle FeedState = iota
	FeedLoadingMore
)

func (s FeedState) String() string {
	if s == FeedLoadingMore {
		return "loading_more"
	}
	return "idle"
}

// Feed reveals a derived list page by page. Revealed items only grow until the
// query changes, which resets the feed to its first page.
type Feed struct {
	pageSize int
	key      models.FeedbackQuery
	items    []FeedbackView
	revealed int
	state    FeedState
}

// NewFeed builds an idle, empty feed. A non-positive pageSize uses PageSize.
func NewFeed(pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return &Feed{pageSize: pageSize}
}

func queryKey(q models.FeedbackQuery) models.FeedbackQuery {
	q.Page = 0
	return q
}

// Reset replaces the list for query q. A changed query goes back to page 1;
// the same query keeps what was already revealed.
func (f *Feed) Reset(q models.FeedbackQuery, items []FeedbackView) {
	key := queryKey(q)
	if key != f.key || f.revealed == 0 {
		f.revealed = f.pageSize
	}
	f.key = key
	f.items = items
	f.state = FeedIdle
}

// LoadMore reveals the next page and returns it. It is a no-op when nothing
// is left.
func (f *Feed) LoadMore() []FeedbackView {
	if !f.HasMore() {
		return nil
	}
	f.state = FeedLoadingMore
	start := f.revealed
	f.revealed += f.pageSize
	page := f.items[start:min(f.revealed, len(f.items))]
	f.state = FeedIdle
	return page
}

// Visible returns the revealed prefix of the list.
func (f *Feed) Visible() []FeedbackView {
	return f.items[:min(f.revealed, len(f.items))]
}

// HasMore reports whether another page exists.
func (f *Feed) HasMore() bool {
	return f.revealed < len(f.items)
}

// Page is the number of revealed pages.
func (f *Feed) Page() int {
	if f.revealed == 0 {
		return 0
	}
	return (f.revealed + f.pageSize - 1) / f.pageSize
}

// Total is the length of the full list.
func (f *Feed) Total() int {
	return len(f.items)
}

// State returns the loading state.
func (f *Feed) State() FeedState {
	return f.state
}
