package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/analytics"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
	"github.com/noah-isme/lecture-intel-api/pkg/events"
	"github.com/noah-isme/lecture-intel-api/pkg/export"
)

type feedbackStore interface {
	Create(ctx context.Context, f *models.Feedback) error
	FindByID(ctx context.Context, id string) (*models.Feedback, error)
	MarkRead(ctx context.Context, userID, feedbackID string, at time.Time) error
	ReadIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// FeedbackService lists, submits and exports lecture feedback.
type FeedbackService struct {
	snapshots snapshotLoader
	repo      feedbackStore
	publisher events.Publisher
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	csv       *export.CSVExporter
	logger    *zap.Logger
	now       func() time.Time
}

// FeedbackServiceParams groups constructor dependencies.
type FeedbackServiceParams struct {
	Snapshots snapshotLoader
	Repo      feedbackStore
	Publisher events.Publisher
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewFeedbackService constructs the service.
func NewFeedbackService(params FeedbackServiceParams) *FeedbackService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &FeedbackService{
		snapshots: params.Snapshots,
		repo:      params.Repo,
		publisher: publisher,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		csv:       export.NewCSVExporter(),
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the revealed pages of the filtered, searched and sorted list.
// Page n reveals the first n pages, as repeated "load more" would.
func (s *FeedbackService) List(ctx context.Context, actor models.Actor, q models.FeedbackQuery) (*models.FeedbackList, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	views, err := s.Views(ctx, actor, q)
	if err != nil {
		return nil, err
	}

	feed := analytics.NewFeed(analytics.PageSize)
	feed.Reset(q, views)
	for feed.Page() < q.Page && feed.HasMore() {
		feed.LoadMore()
	}

	return &models.FeedbackList{
		Items:    nonNil(feed.Visible()),
		Total:    feed.Total(),
		Page:     feed.Page(),
		PageSize: analytics.PageSize,
		HasMore:  feed.HasMore(),
	}, nil
}

// Views returns the full derived list for q without pagination.
func (s *FeedbackService) Views(ctx context.Context, actor models.Actor, q models.FeedbackQuery) ([]analytics.FeedbackView, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, validationError(err, "invalid feedback query")
	}
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	feedback, err := scopedFeedback(snap, q.CourseID)
	if err != nil {
		return nil, err
	}
	read, err := s.repo.ReadIDs(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load read marks")
	}
	views := analytics.BuildViews(snap, feedback, read)
	return analytics.Pipeline(views, q, s.now()), nil
}

// Stats summarises the feedback of one course, or of every course in scope
// when courseID is empty.
func (s *FeedbackService) Stats(ctx context.Context, actor models.Actor, courseID string) (models.FeedbackStats, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return models.FeedbackStats{}, err
	}
	feedback, err := scopedFeedback(snap, courseID)
	if err != nil {
		return models.FeedbackStats{}, err
	}
	return analytics.Stats(feedback, s.now()), nil
}

// ExportCSV renders every row of the derived list for q, ignoring pagination.
func (s *FeedbackService) ExportCSV(ctx context.Context, actor models.Actor, q models.FeedbackQuery) ([]byte, error) {
	views, err := s.Views(ctx, actor, q)
	if err != nil {
		return nil, err
	}
	payload, err := s.csv.Render(analytics.CSVDataset(views))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

// Submit stores a student's feedback for a lecture of an enrolled course.
func (s *FeedbackService) Submit(ctx context.Context, actor models.Actor, req models.SubmitFeedbackRequest) (*models.Feedback, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit feedback")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid feedback payload")
	}
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	if _, err := courseInScope(snap, req.CourseID); err != nil {
		return nil, err
	}
	lecture, ok := snap.Lecture(req.LectureID)
	if !ok || lecture.CourseID != req.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lecture does not belong to course")
	}
	if err := checkTopics(snap, req.CourseID, req.TopicRatings); err != nil {
		return nil, err
	}

	tags := make(pq.StringArray, 0, len(req.Tags))
	for _, tag := range req.Tags {
		tags = append(tags, strings.TrimSpace(tag))
	}
	feedback := &models.Feedback{
		StudentID:          actor.StudentID,
		CourseID:           req.CourseID,
		LectureID:          req.LectureID,
		UnderstandingLevel: req.UnderstandingLevel,
		Comment:            strings.TrimSpace(req.Comment),
		Tags:               tags,
		Timestamp:          s.now().UTC(),
		TopicRatings:       req.TopicRatings,
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store feedback")
	}

	s.metrics.RecordFeedback(feedback.UnderstandingLevel)
	s.snapshots.Invalidate(ctx)
	if err := s.publisher.Publish(ctx, events.NewEvent(events.TypeFeedbackSubmitted, feedback.CourseID, feedback)); err != nil {
		s.logger.Warn("publish feedback event", zap.String("feedback_id", feedback.ID), zap.Error(err))
	}
	return feedback, nil
}

// MarkRead records that the caller has read a feedback entry. Marking twice
// is a no-op.
func (s *FeedbackService) MarkRead(ctx context.Context, actor models.Actor, feedbackID string) error {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return err
	}
	feedback, err := s.repo.FindByID(ctx, feedbackID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.NotFoundf("feedback %s not found", feedbackID)
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	// Feedback outside the caller's courses is reported as missing.
	if _, err := courseInScope(snap, feedback.CourseID); err != nil {
		return appErrors.NotFoundf("feedback %s not found", feedbackID)
	}
	if err := s.repo.MarkRead(ctx, actor.UserID, feedbackID, s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark feedback read")
	}
	_ = s.cache.Invalidate(ctx, cacheKey(cacheNamespaceDashboard, "professor", actor.UserID))
	return nil
}

func scopedFeedback(snap *store.Snapshot, courseID string) ([]models.Feedback, error) {
	if courseID == "" {
		return snap.Feedback, nil
	}
	if _, err := courseInScope(snap, courseID); err != nil {
		return nil, err
	}
	return snap.FeedbackForCourse(courseID), nil
}

func checkTopics(snap *store.Snapshot, courseID string, ratings []models.TopicRating) error {
	if len(ratings) == 0 {
		return nil
	}
	owned := make(map[string]bool)
	for _, t := range snap.Topics {
		if t.CourseID == courseID {
			owned[t.ID] = true
		}
	}
	seen := make(map[string]bool, len(ratings))
	for _, r := range ratings {
		if !owned[r.TopicID] {
			return appErrors.Validationf("topic %s does not belong to course", r.TopicID)
		}
		if seen[r.TopicID] {
			return appErrors.Validationf("topic %s is rated twice", r.TopicID)
		}
		seen[r.TopicID] = true
	}
	return nil
}
