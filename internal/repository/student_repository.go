package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

// StudentRepository reads the student roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByCourses returns students enrolled in any of the courses; nil loads
// the whole roster.
func (r *StudentRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Student, error) {
	query := `SELECT id, name, roll_number FROM students ORDER BY name, id`
	var args []interface{}
	if courseIDs != nil {
		query = `SELECT DISTINCT s.id, s.name, s.roll_number FROM students s
JOIN course_students cs ON cs.student_id = s.id
WHERE cs.course_id = ANY($1) ORDER BY s.name, s.id`
		args = append(args, pq.Array(courseIDs))
	}
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// MissingIDs returns the ids that have no student row, in input order.
func (r *StudentRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id FROM students WHERE id = ANY($1)`
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("check students: %w", err)
	}
	known := make(map[string]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
