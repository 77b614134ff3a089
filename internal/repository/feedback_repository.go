package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

const feedbackColumns = `id, student_id, course_id, lecture_id, understanding_level, comment, tags, submitted_at`

// FeedbackRepository persists append-only feedback and topic ratings.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// ListByCourses returns feedback in submission order with topic ratings
// attached; nil courseIDs loads everything.
func (r *FeedbackRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Feedback, error) {
	where, args := courseScope("course_id", courseIDs, 1)
	query := `SELECT ` + feedbackColumns + ` FROM feedback` + where + ` ORDER BY submitted_at ASC, id ASC`
	var feedback []models.Feedback
	if err := r.db.SelectContext(ctx, &feedback, query, args...); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if err := r.attachRatings(ctx, feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

func (r *FeedbackRepository) attachRatings(ctx context.Context, feedback []models.Feedback) error {
	if len(feedback) == 0 {
		return nil
	}
	ids := make([]string, len(feedback))
	pos := make(map[string]int, len(feedback))
	for i, f := range feedback {
		ids[i] = f.ID
		pos[f.ID] = i
	}

	const query = `SELECT feedback_id, topic_id, rating FROM feedback_topic_ratings WHERE feedback_id = ANY($1) ORDER BY feedback_id, topic_id`
	var ratings []models.TopicRating
	if err := r.db.SelectContext(ctx, &ratings, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list topic ratings: %w", err)
	}
	for _, tr := range ratings {
		if i, ok := pos[tr.FeedbackID]; ok {
			feedback[i].TopicRatings = append(feedback[i].TopicRatings, tr)
		}
	}
	return nil
}

// FindByID returns one feedback record or sql.ErrNoRows.
func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	const query = `SELECT ` + feedbackColumns + ` FROM feedback WHERE id = $1`
	var f models.Feedback
	if err := r.db.GetContext(ctx, &f, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find feedback: %w", err)
	}
	return &f, nil
}

// Create appends a feedback record and its topic ratings.
func (r *FeedbackRepository) Create(ctx context.Context, f *models.Feedback) (err error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	if f.Tags == nil {
		f.Tags = pq.StringArray{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feedback transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertFeedback = `INSERT INTO feedback (id, student_id, course_id, lecture_id, understanding_level, comment, tags, submitted_at)
VALUES (:id, :student_id, :course_id, :lecture_id, :understanding_level, :comment, :tags, :submitted_at)`
	if _, err = tx.NamedExecContext(ctx, insertFeedback, f); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	const insertRating = `INSERT INTO feedback_topic_ratings (feedback_id, topic_id, rating) VALUES ($1, $2, $3)`
	for i := range f.TopicRatings {
		f.TopicRatings[i].FeedbackID = f.ID
		tr := f.TopicRatings[i]
		if _, err = tx.ExecContext(ctx, insertRating, tr.FeedbackID, tr.TopicID, tr.Rating); err != nil {
			return fmt.Errorf("insert topic rating: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit feedback: %w", err)
	}
	return nil
}

// MarkRead records that a user has read a feedback item. Repeat marks keep the
// first read time.
func (r *FeedbackRepository) MarkRead(ctx context.Context, userID, feedbackID string, at time.Time) error {
	const query = `INSERT INTO feedback_reads (user_id, feedback_id, read_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id, feedback_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, feedbackID, at); err != nil {
		return fmt.Errorf("mark feedback read: %w", err)
	}
	return nil
}

// ReadIDs returns the feedback ids a user has marked read.
func (r *FeedbackRepository) ReadIDs(ctx context.Context, userID string) (map[string]bool, error) {
	const query = `SELECT feedback_id FROM feedback_reads WHERE user_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list read feedback: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
