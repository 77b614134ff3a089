package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

const courseColumns = `id, code, name, department, semester, professor_id, created_at`

// CourseRepository persists courses with their rosters, lectures and topics.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter ordered by code.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var b strings.Builder
	b.WriteString("SELECT " + courseColumns + " FROM courses WHERE 1=1")
	args := make([]interface{}, 0, 2)
	if filter.ProfessorID != "" {
		args = append(args, filter.ProfessorID)
		fmt.Fprintf(&b, " AND professor_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		fmt.Fprintf(&b, " AND id IN (SELECT course_id FROM course_students WHERE student_id = $%d)", len(args))
	}
	b.WriteString(" ORDER BY code ASC")

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by identifier or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ExistsByCode reports whether a course code is taken.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM courses WHERE LOWER(code) = LOWER($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("check course code: %w", err)
	}
	return exists, nil
}

// Rosters returns enrolled student ids per course in enrolment order.
func (r *CourseRepository) Rosters(ctx context.Context, courseIDs []string) (map[string][]string, error) {
	where, args := courseScope("course_id", courseIDs, 1)
	query := `SELECT course_id, student_id FROM course_students` + where + ` ORDER BY course_id, position`
	var rows []struct {
		CourseID  string `db:"course_id"`
		StudentID string `db:"student_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list course rosters: %w", err)
	}
	out := make(map[string][]string)
	for _, row := range rows {
		out[row.CourseID] = append(out[row.CourseID], row.StudentID)
	}
	return out, nil
}

// Create inserts a course, its ordered roster, lectures and topics in one
// transaction. Missing ids are generated.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, lectures []models.Lecture, topics []models.Topic) (err error) {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertCourse = `INSERT INTO courses (id, code, name, department, semester, professor_id, created_at)
VALUES (:id, :code, :name, :department, :semester, :professor_id, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertCourse, course); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert course: %w", err)
	}

	const insertEnrolment = `INSERT INTO course_students (course_id, student_id, position) VALUES ($1, $2, $3)`
	for i, studentID := range course.StudentIDs {
		if _, err = tx.ExecContext(ctx, insertEnrolment, course.ID, studentID, i); err != nil {
			return fmt.Errorf("insert enrolment: %w", err)
		}
	}

	const insertLecture = `INSERT INTO lectures (id, course_id, title, position, scheduled_at) VALUES ($1, $2, $3, $4, $5)`
	course.LectureIDs = make([]string, 0, len(lectures))
	for i := range lectures {
		l := &lectures[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.CourseID = course.ID
		l.Position = i
		if _, err = tx.ExecContext(ctx, insertLecture, l.ID, l.CourseID, l.Title, l.Position, l.ScheduledAt); err != nil {
			return fmt.Errorf("insert lecture: %w", err)
		}
		course.LectureIDs = append(course.LectureIDs, l.ID)
	}

	const insertTopic = `INSERT INTO topics (id, course_id, name) VALUES ($1, $2, $3)`
	for i := range topics {
		t := &topics[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.CourseID = course.ID
		if _, err = tx.ExecContext(ctx, insertTopic, t.ID, t.CourseID, t.Name); err != nil {
			return fmt.Errorf("insert topic: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course: %w", err)
	}
	return nil
}

// Delete removes a course; lectures, topics, enrolments and feedback cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete course rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
