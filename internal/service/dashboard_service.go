package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/analytics"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
)

type readMarkLookup interface {
	ReadIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL           time.Duration
	LowHealthThreshold int
	SilentWindow       time.Duration
	RecentLimit        int
}

// DashboardService orchestrates composition of dashboard payloads.
type DashboardService struct {
	snapshots snapshotLoader
	reads     readMarkLookup
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Snapshots snapshotLoader
	Reads     readMarkLookup
	Cache     *CacheService
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.LowHealthThreshold <= 0 {
		cfg.LowHealthThreshold = 50
	}
	if cfg.SilentWindow <= 0 {
		cfg.SilentWindow = 7 * 24 * time.Hour
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		snapshots: params.Snapshots,
		reads:     params.Reads,
		cache:     params.Cache,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Professor returns the teaching dashboard and indicates cache utilisation.
func (s *DashboardService) Professor(ctx context.Context, actor models.Actor) (*models.ProfessorDashboard, bool, error) {
	if !actor.IsStaff() {
		return nil, false, appErrors.ErrForbidden
	}
	key := cacheKey(cacheNamespaceDashboard, "professor", actor.UserID)
	return cached(ctx, s.cache, key, s.cfg.CacheTTL, func() (*models.ProfessorDashboard, error) {
		return s.composeProfessor(ctx, actor)
	})
}

// Student returns a student's course overview and indicates cache utilisation.
func (s *DashboardService) Student(ctx context.Context, actor models.Actor) (*models.StudentDashboard, bool, error) {
	if actor.Role != models.RoleStudent || actor.StudentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a student record")
	}
	key := cacheKey(cacheNamespaceDashboard, "student", actor.StudentID)
	return cached(ctx, s.cache, key, s.cfg.CacheTTL, func() (*models.StudentDashboard, error) {
		return s.composeStudent(ctx, actor)
	})
}

func (s *DashboardService) composeProfessor(ctx context.Context, actor models.Actor) (*models.ProfessorDashboard, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	read, err := s.reads.ReadIDs(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load read marks")
	}
	now := s.now()

	dash := &models.ProfessorDashboard{
		Courses:          make([]models.CourseHealthSummary, 0, len(snap.Courses)),
		LowHealthCourses: []models.CourseHealthSummary{},
		SilentAlerts:     []models.SilentStudentAlert{},
		OverallHealth:    analytics.HealthOf(snap.Feedback),
		TotalFeedback:    len(snap.Feedback),
		GeneratedAt:      now.UTC(),
	}

	students := make(map[string]struct{})
	for _, course := range snap.Courses {
		summary := courseSummary(snap, course)
		dash.Courses = append(dash.Courses, summary)
		if summary.FeedbackCount > 0 && summary.Health < s.cfg.LowHealthThreshold {
			dash.LowHealthCourses = append(dash.LowHealthCourses, summary)
		}
		for _, sid := range course.StudentIDs {
			students[sid] = struct{}{}
		}
		for _, silent := range analytics.SilentStudents(snap, course.ID, s.cfg.SilentWindow, now) {
			dash.SilentAlerts = append(dash.SilentAlerts, models.SilentStudentAlert{
				CourseID:      course.ID,
				CourseCode:    course.Code,
				SilentStudent: silent,
			})
		}
	}
	dash.TotalStudents = len(students)
	dash.RecentFeedback = analytics.Recent(analytics.BuildViews(snap, snap.Feedback, read), s.cfg.RecentLimit)
	return dash, nil
}

func (s *DashboardService) composeStudent(ctx context.Context, actor models.Actor) (*models.StudentDashboard, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	dash := &models.StudentDashboard{
		StudentID:   actor.StudentID,
		Name:        snap.StudentName(actor.StudentID),
		Courses:     make([]models.StudentCourseSummary, 0, len(snap.Courses)),
		GeneratedAt: s.now().UTC(),
	}

	for _, course := range snap.Courses {
		feedback := snap.FeedbackForCourse(course.ID)
		summary := models.StudentCourseSummary{
			CourseID:        course.ID,
			Code:            course.Code,
			Name:            course.Name,
			Health:          analytics.HealthOf(feedback),
			PendingLectures: []models.LectureRef{},
		}
		covered := make(map[string]bool)
		for _, f := range feedback {
			if f.StudentID != actor.StudentID {
				continue
			}
			summary.MyFeedback++
			covered[f.LectureID] = true
			if summary.LastSubmittedAt == nil || f.Timestamp.After(*summary.LastSubmittedAt) {
				at := f.Timestamp
				summary.LastSubmittedAt = &at
			}
		}
		for _, lecture := range snap.LecturesForCourse(course.ID) {
			if !covered[lecture.ID] {
				summary.PendingLectures = append(summary.PendingLectures, models.LectureRef{LectureID: lecture.ID, Title: lecture.Title})
			}
		}
		dash.TotalFeedback += summary.MyFeedback
		dash.Courses = append(dash.Courses, summary)
	}
	return dash, nil
}

func courseSummary(snap *store.Snapshot, course models.Course) models.CourseHealthSummary {
	feedback := snap.FeedbackForCourse(course.ID)
	return models.CourseHealthSummary{
		CourseID:      course.ID,
		Code:          course.Code,
		Name:          course.Name,
		Health:        analytics.HealthOf(feedback),
		FeedbackCount: len(feedback),
		StudentCount:  len(course.StudentIDs),
	}
}
