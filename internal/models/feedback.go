package models

import (
	"math"
	"time"

	"github.com/lib/pq"
)

// UnderstandingLevel is a student's self-reported comprehension.
type UnderstandingLevel string

const (
	LevelFully    UnderstandingLevel = "fully"
	LevelPartial  UnderstandingLevel = "partial"
	LevelConfused UnderstandingLevel = "confused"
)

// Valid reports whether the level is one of the three known values.
func (l UnderstandingLevel) Valid() bool {
	switch l {
	case LevelFully, LevelPartial, LevelConfused:
		return true
	}
	return false
}

// Score maps a level onto the 100/60/20 health scale. Unknown levels report
// ok=false and must be left out of aggregates.
func (l UnderstandingLevel) Score() (score int, ok bool) {
	switch l {
	case LevelFully:
		return 100, true
	case LevelPartial:
		return 60, true
	case LevelConfused:
		return 20, true
	}
	return 0, false
}

// TopicRating is a 1..5 score for one topic.
type TopicRating struct {
	FeedbackID string `db:"feedback_id" json:"-"`
	TopicID    string `db:"topic_id" json:"topic_id" validate:"required"`
	Rating     int    `db:"rating" json:"rating" validate:"min=1,max=5"`
}

// Feedback is an append-only student submission for a lecture.
type Feedback struct {
	ID                 string             `db:"id" json:"id"`
	StudentID          string             `db:"student_id" json:"student_id"`
	CourseID           string             `db:"course_id" json:"course_id"`
	LectureID          string             `db:"lecture_id" json:"lecture_id"`
	UnderstandingLevel UnderstandingLevel `db:"understanding_level" json:"understanding_level"`
	Comment            string             `db:"comment" json:"comment"`
	Tags               pq.StringArray     `db:"tags" json:"tags"`
	Timestamp          time.Time          `db:"submitted_at" json:"timestamp"`
	TopicRatings       []TopicRating      `db:"-" json:"topic_ratings,omitempty"`
}

// Rating derives a 1..5 score: the rounded mean of topic ratings when present,
// otherwise fully=5, partial=3, confused=1. Unknown levels rate 0.
func (f Feedback) Rating() int {
	if len(f.TopicRatings) > 0 {
		sum := 0
		for _, tr := range f.TopicRatings {
			sum += tr.Rating
		}
		return int(math.Floor(float64(sum)/float64(len(f.TopicRatings)) + 0.5))
	}
	switch f.UnderstandingLevel {
	case LevelFully:
		return 5
	case LevelPartial:
		return 3
	case LevelConfused:
		return 1
	}
	return 0
}

// Resolved is derived, never stored: anything but confused counts as resolved.
func (f Feedback) Resolved() bool {
	return f.UnderstandingLevel != LevelConfused
}

// SubmitFeedbackRequest is the student feedback form.
type SubmitFeedbackRequest struct {
	CourseID           string             `json:"course_id" validate:"required"`
	LectureID          string             `json:"lecture_id" validate:"required"`
	UnderstandingLevel UnderstandingLevel `json:"understanding_level" validate:"required,oneof=fully partial confused"`
	Comment            string             `json:"comment" validate:"max=2000"`
	Tags               []string           `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
	TopicRatings       []TopicRating      `json:"topic_ratings" validate:"omitempty,dive"`
}
