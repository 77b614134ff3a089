package models

// FeedbackFilter is the categorical predicate applied to the feedback list.
type FeedbackFilter string

const (
	FilterAll        FeedbackFilter = "all"
	FilterUnread     FeedbackFilter = "unread"
	FilterUnresolved FeedbackFilter = "unresolved"
	FilterLowRating  FeedbackFilter = "low_rating"
	FilterHighRating FeedbackFilter = "high_rating"
	FilterToday      FeedbackFilter = "today"
	FilterCategory   FeedbackFilter = "category"
)

// FeedbackSort is the display ordering of the feedback list.
type FeedbackSort string

const (
	SortNewest     FeedbackSort = "newest"
	SortOldest     FeedbackSort = "oldest"
	SortRatingDesc FeedbackSort = "rating_desc"
	SortRatingAsc  FeedbackSort = "rating_asc"
	SortCourse     FeedbackSort = "course"
)

// FeedbackQuery is the list request. Page counts revealed pages, starting at 1.
type FeedbackQuery struct {
	CourseID string         `form:"course_id"`
	Search   string         `form:"q" validate:"max=200"`
	Filter   FeedbackFilter `form:"filter" validate:"omitempty,oneof=all unread unresolved low_rating high_rating today category"`
	Category string         `form:"category" validate:"required_if=Filter category,max=40"`
	Sort     FeedbackSort   `form:"sort" validate:"omitempty,oneof=newest oldest rating_desc rating_asc course"`
	Page     int            `form:"page" validate:"omitempty,min=1"`
}

// FeedbackList is the revealed slice of the filtered, sorted list.
type FeedbackList struct {
	Items    []FeedbackView `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	HasMore  bool           `json:"has_more"`
}
