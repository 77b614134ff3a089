package models

// Student is a roster entry.
type Student struct {
	ID         string   `db:"id" json:"id"`
	Name       string   `db:"name" json:"name"`
	RollNumber string   `db:"roll_number" json:"roll_number"`
	CourseIDs  []string `db:"-" json:"course_ids"`
}
