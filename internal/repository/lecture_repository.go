package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

// LectureRepository reads lectures and topics.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// ListByCourses returns lectures in schedule order; nil courseIDs loads all.
func (r *LectureRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Lecture, error) {
	where, args := courseScope("course_id", courseIDs, 1)
	query := `SELECT id, course_id, title, position, scheduled_at FROM lectures` + where + ` ORDER BY course_id, position`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, args...); err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	return lectures, nil
}

// TopicsByCourses returns topics ordered by name; nil courseIDs loads all.
func (r *LectureRepository) TopicsByCourses(ctx context.Context, courseIDs []string) ([]models.Topic, error) {
	where, args := courseScope("course_id", courseIDs, 1)
	query := `SELECT id, course_id, name FROM topics` + where + ` ORDER BY course_id, name`
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}
