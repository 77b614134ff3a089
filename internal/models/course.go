package models

import "time"

// Course is a taught course. StudentIDs and LectureIDs keep enrolment and
// schedule order.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Department  string    `db:"department" json:"department"`
	Semester    string    `db:"semester" json:"semester"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	StudentIDs  []string  `db:"-" json:"student_ids"`
	LectureIDs  []string  `db:"-" json:"lecture_ids"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CreateCourseRequest is the course-creation form.
type CreateCourseRequest struct {
	Code        string   `json:"code" validate:"required,max=20"`
	Name        string   `json:"name" validate:"required,max=120"`
	Department  string   `json:"department" validate:"required,max=80"`
	Semester    string   `json:"semester" validate:"required,max=40"`
	ProfessorID string   `json:"professor_id"`
	StudentIDs  []string `json:"student_ids" validate:"omitempty,unique,dive,required"`
	Lectures    []string `json:"lectures" validate:"required,min=1,dive,required,max=200"`
	Topics      []string `json:"topics" validate:"omitempty,dive,required,max=120"`
}

// CourseFilter scopes course listings.
type CourseFilter struct {
	ProfessorID string
	StudentID   string
}

// CourseDetail is a course with its resolved children.
type CourseDetail struct {
	Course
	Lectures []Lecture `json:"lectures"`
	Topics   []Topic   `json:"topics"`
	Students []Student `json:"students"`
	Health   int       `json:"health"`
}
