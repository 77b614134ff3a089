package models

import "time"

// Lecture is a scheduled session of a course.
type Lecture struct {
	ID          string     `db:"id" json:"id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	Title       string     `db:"title" json:"title"`
	Position    int        `db:"position" json:"position"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
}

// Topic is a rateable subject within a course.
type Topic struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Name     string `db:"name" json:"name"`
}
