package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
)

// FeedbackView is a feedback record with resolved display labels.
type FeedbackView = models.FeedbackView

// BuildViews resolves labels for feedback against the snapshot. read holds
// the ids the viewer has marked read.
func BuildViews(s *store.Snapshot, feedback []models.Feedback, read map[string]bool) []FeedbackView {
	views := make([]FeedbackView, 0, len(feedback))
	for _, f := range feedback {
		views = append(views, FeedbackView{
			Feedback:     f,
			LectureTitle: s.LectureTitle(f.LectureID),
			CourseCode:   s.CourseCode(f.CourseID),
			StudentName:  s.StudentName(f.StudentID),
			Rating:       f.Rating(),
			Resolved:     f.Resolved(),
			Read:         read[f.ID],
		})
	}
	return views
}

// Search keeps views where q occurs, case-insensitively, in the lecture
// title, course code, student name or comment. An empty q returns views as is.
func Search(views []FeedbackView, q string) []FeedbackView {
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return views
	}
	out := make([]FeedbackView, 0, len(views))
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.LectureTitle), needle) ||
			strings.Contains(strings.ToLower(v.CourseCode), needle) ||
			strings.Contains(strings.ToLower(v.StudentName), needle) ||
			strings.Contains(strings.ToLower(v.Comment), needle) {
			out = append(out, v)
		}
	}
	return out
}

// Filter is a categorical predicate. Category is only read for the category kind.
type Filter struct {
	Kind     models.FeedbackFilter
	Category string
}

func (f Filter) match(v FeedbackView, today string) bool {
	switch f.Kind {
	case models.FilterUnread:
		return !v.Read
	case models.FilterUnresolved:
		return !v.Resolved
	case models.FilterLowRating:
		return v.Rating >= 1 && v.Rating <= 2
	case models.FilterHighRating:
		return v.Rating >= 4
	case models.FilterToday:
		return dayKey(v.Timestamp) == today
	case models.FilterCategory:
		for _, tag := range v.Tags {
			if strings.EqualFold(tag, f.Category) {
				return true
			}
		}
		return false
	}
	return true
}

// ApplyFilter keeps views matching the filter.
func ApplyFilter(views []FeedbackView, f Filter, now time.Time) []FeedbackView {
	if f.Kind == "" || f.Kind == models.FilterAll {
		return views
	}
	today := dayKey(now)
	out := make([]FeedbackView, 0, len(views))
	for _, v := range views {
		if f.match(v, today) {
			out = append(out, v)
		}
	}
	return out
}

// SortViews returns a stably sorted copy. Unknown keys sort newest first.
func SortViews(views []FeedbackView, key models.FeedbackSort) []FeedbackView {
	out := make([]FeedbackView, len(views))
	copy(out, views)

	var less func(a, b FeedbackView) bool
	switch key {
	case models.SortOldest:
		less = func(a, b FeedbackView) bool { return a.Timestamp.Before(b.Timestamp) }
	case models.SortRatingDesc:
		less = func(a, b FeedbackView) bool { return a.Rating > b.Rating }
	case models.SortRatingAsc:
		less = func(a, b FeedbackView) bool { return a.Rating < b.Rating }
	case models.SortCourse:
		less = func(a, b FeedbackView) bool { return a.CourseCode < b.CourseCode }
	default:
		less = func(a, b FeedbackView) bool { return a.Timestamp.After(b.Timestamp) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Pipeline applies filter, search and sort for a list query.
func Pipeline(views []FeedbackView, q models.FeedbackQuery, now time.Time) []FeedbackView {
	filtered := ApplyFilter(views, Filter{Kind: q.Filter, Category: q.Category}, now)
	return SortViews(Search(filtered, q.Search), q.Sort)
}
