package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
)

type snapshotCourseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	Rosters(ctx context.Context, courseIDs []string) (map[string][]string, error)
}

type snapshotLectureRepository interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Lecture, error)
	TopicsByCourses(ctx context.Context, courseIDs []string) ([]models.Topic, error)
}

type snapshotStudentRepository interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Student, error)
}

type snapshotFeedbackRepository interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Feedback, error)
}

// snapshotLoader is what the derivation services need from SnapshotService.
type snapshotLoader interface {
	Load(ctx context.Context, scope models.CourseFilter) (*store.Snapshot, bool, error)
	Invalidate(ctx context.Context)
}

// SnapshotService assembles store snapshots from the repositories and keeps
// them in the cache under a key that carries the schema version.
type SnapshotService struct {
	courses  snapshotCourseRepository
	lectures snapshotLectureRepository
	students snapshotStudentRepository
	feedback snapshotFeedbackRepository
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	ttl      time.Duration
}

// SnapshotServiceParams groups constructor dependencies.
type SnapshotServiceParams struct {
	Courses  snapshotCourseRepository
	Lectures snapshotLectureRepository
	Students snapshotStudentRepository
	Feedback snapshotFeedbackRepository
	Cache    *CacheService
	Metrics  *MetricsService
	Logger   *zap.Logger
	TTL      time.Duration
}

// NewSnapshotService constructs the service.
func NewSnapshotService(params SnapshotServiceParams) *SnapshotService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &SnapshotService{
		courses:  params.Courses,
		lectures: params.Lectures,
		students: params.Students,
		feedback: params.Feedback,
		cache:    params.Cache,
		metrics:  params.Metrics,
		logger:   logger,
		ttl:      ttl,
	}
}

// ScopeFor returns the course filter an actor is allowed to read: admins see
// every course, professors the ones they teach, students their enrolments.
func ScopeFor(actor models.Actor) (models.CourseFilter, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return models.CourseFilter{}, nil
	case models.RoleProfessor:
		return models.CourseFilter{ProfessorID: actor.UserID}, nil
	case models.RoleStudent:
		if actor.StudentID == "" {
			return models.CourseFilter{}, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a student record")
		}
		return models.CourseFilter{StudentID: actor.StudentID}, nil
	default:
		return models.CourseFilter{}, appErrors.ErrForbidden
	}
}

// loadFor loads the snapshot scoped to actor.
func loadFor(ctx context.Context, loader snapshotLoader, actor models.Actor) (*store.Snapshot, error) {
	scope, err := ScopeFor(actor)
	if err != nil {
		return nil, err
	}
	snap, _, err := loader.Load(ctx, scope)
	return snap, err
}

func snapshotKey(scope models.CourseFilter) string {
	version := fmt.Sprintf("v%d", store.SchemaVersion)
	switch {
	case scope.ProfessorID != "" && scope.StudentID != "":
		return cacheKey(cacheNamespaceSnapshot, version, "professor", scope.ProfessorID, "student", scope.StudentID)
	case scope.ProfessorID != "":
		return cacheKey(cacheNamespaceSnapshot, version, "professor", scope.ProfessorID)
	case scope.StudentID != "":
		return cacheKey(cacheNamespaceSnapshot, version, "student", scope.StudentID)
	default:
		return cacheKey(cacheNamespaceSnapshot, version, "all")
	}
}

// Load returns the snapshot for scope. The boolean reports a cache hit.
func (s *SnapshotService) Load(ctx context.Context, scope models.CourseFilter) (*store.Snapshot, bool, error) {
	key := snapshotKey(scope)
	var raw json.RawMessage
	if hit, err := s.cache.Get(ctx, key, &raw); err == nil && hit {
		snap, err := store.Decode(raw)
		if err == nil {
			return snap, true, nil
		}
		s.logger.Warn("discarding cached snapshot", zap.String("key", key), zap.Error(err))
	}

	start := time.Now()
	snap, err := s.build(ctx, scope)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course data")
	}
	s.metrics.ObserveDBQuery("snapshot_load", time.Since(start))

	_ = s.cache.Set(ctx, key, snap, s.ttl)
	return snap, false, nil
}

func (s *SnapshotService) build(ctx context.Context, scope models.CourseFilter) (*store.Snapshot, error) {
	courses, err := s.courses.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	// nil loads every row; an empty scope must load nothing.
	var ids []string
	if scope != (models.CourseFilter{}) {
		if len(courses) == 0 {
			return store.New([]models.Course{}, []models.Lecture{}, []models.Topic{}, []models.Student{}, []models.Feedback{}), nil
		}
		ids = make([]string, 0, len(courses))
		for _, c := range courses {
			ids = append(ids, c.ID)
		}
	}

	rosters, err := s.courses.Rosters(ctx, ids)
	if err != nil {
		return nil, err
	}
	lectures, err := s.lectures.ListByCourses(ctx, ids)
	if err != nil {
		return nil, err
	}
	topics, err := s.lectures.TopicsByCourses(ctx, ids)
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListByCourses(ctx, ids)
	if err != nil {
		return nil, err
	}
	feedback, err := s.feedback.ListByCourses(ctx, ids)
	if err != nil {
		return nil, err
	}

	lectureIDs := make(map[string][]string)
	for _, l := range lectures {
		lectureIDs[l.CourseID] = append(lectureIDs[l.CourseID], l.ID)
	}
	enrolled := make(map[string][]string)
	for i := range courses {
		c := &courses[i]
		c.StudentIDs = nonNil(rosters[c.ID])
		c.LectureIDs = nonNil(lectureIDs[c.ID])
		for _, sid := range c.StudentIDs {
			enrolled[sid] = append(enrolled[sid], c.ID)
		}
	}
	for i := range students {
		students[i].CourseIDs = nonNil(enrolled[students[i].ID])
	}

	return store.New(nonNil(courses), nonNil(lectures), nonNil(topics), nonNil(students), nonNil(feedback)), nil
}

// Invalidate drops cached snapshots and everything derived from them.
func (s *SnapshotService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx,
		cacheNamespaceSnapshot+":*",
		cacheNamespaceAnalytics+":*",
		cacheNamespaceDashboard+":*",
	); err != nil {
		s.logger.Warn("snapshot invalidation incomplete", zap.Error(err))
	}
}

// courseInScope returns the course when it is part of the snapshot. Courses
// outside the caller's scope are reported as not found.
func courseInScope(snap *store.Snapshot, courseID string) (models.Course, error) {
	course, ok := snap.Course(courseID)
	if !ok {
		return models.Course{}, appErrors.NotFoundf("course %s not found", courseID)
	}
	return course, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
