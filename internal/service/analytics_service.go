package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/analytics"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
)

// AnalyticsConfig tunes analytics caching and the silent-student window.
type AnalyticsConfig struct {
	CacheTTL     time.Duration
	SilentWindow time.Duration
}

// AnalyticsService serves per-course derivations from scoped snapshots with
// cache integration.
type AnalyticsService struct {
	snapshots snapshotLoader
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       AnalyticsConfig
	now       func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(snapshots snapshotLoader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.SilentWindow <= 0 {
		cfg.SilentWindow = 7 * 24 * time.Hour
	}
	return &AnalyticsService{snapshots: snapshots, cache: cache, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// CourseHealth returns the course health score. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) CourseHealth(ctx context.Context, actor models.Actor, courseID string) (int, bool, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return 0, false, err
	}
	if _, err := courseInScope(snap, courseID); err != nil {
		return 0, false, err
	}
	return cached(ctx, s.cache, cacheKey(cacheNamespaceAnalytics, "health", courseID), s.cfg.CacheTTL, func() (int, error) {
		return analytics.HealthOf(snap.FeedbackForCourse(courseID)), nil
	})
}

// DailyMetrics returns one bucket per day for the trailing window.
func (s *AnalyticsService) DailyMetrics(ctx context.Context, actor models.Actor, courseID string, days int) ([]models.DailyMetric, bool, error) {
	if !analytics.ValidWindow(days) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "days must be one of 7, 14, 30 or 90")
	}
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, false, err
	}
	if _, err := courseInScope(snap, courseID); err != nil {
		return nil, false, err
	}
	now := s.now()
	key := cacheKey(cacheNamespaceAnalytics, "daily", courseID, strconv.Itoa(days), now.UTC().Format("2006-01-02"))
	return cached(ctx, s.cache, key, s.cfg.CacheTTL, func() ([]models.DailyMetric, error) {
		return analytics.DailyMetrics(snap.FeedbackForCourse(courseID), days, now), nil
	})
}

// HourlyMetrics returns the 08:00-18:00 buckets for date (YYYY-MM-DD). An
// empty date aggregates every day.
func (s *AnalyticsService) HourlyMetrics(ctx context.Context, actor models.Actor, courseID, date string) ([]models.HourlyMetric, bool, error) {
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, false, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
		}
	}
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, false, err
	}
	if _, err := courseInScope(snap, courseID); err != nil {
		return nil, false, err
	}
	key := cacheKey(cacheNamespaceAnalytics, "hourly", courseID, orDefault(date, "all"))
	return cached(ctx, s.cache, key, s.cfg.CacheTTL, func() ([]models.HourlyMetric, error) {
		return analytics.HourlyMetrics(snap.FeedbackForCourse(courseID), date), nil
	})
}

// TopicDifficulty returns the hardest topics of a course, hardest first.
func (s *AnalyticsService) TopicDifficulty(ctx context.Context, actor models.Actor, courseID string) ([]models.TopicDifficulty, bool, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, false, err
	}
	if _, err := courseInScope(snap, courseID); err != nil {
		return nil, false, err
	}
	return cached(ctx, s.cache, cacheKey(cacheNamespaceAnalytics, "topics", courseID), s.cfg.CacheTTL, func() ([]models.TopicDifficulty, error) {
		return analytics.TopicDifficulty(snap.FeedbackForCourse(courseID), snap.TopicName), nil
	})
}

// SilentStudents lists enrolled students without feedback inside the window.
// A non-positive windowDays uses the configured window.
func (s *AnalyticsService) SilentStudents(ctx context.Context, actor models.Actor, courseID string, windowDays int) ([]models.SilentStudent, error) {
	if windowDays < 0 || windowDays > 365 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window_days must be between 1 and 365")
	}
	window := s.cfg.SilentWindow
	if windowDays > 0 {
		window = time.Duration(windowDays) * 24 * time.Hour
	}
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	if _, err := courseInScope(snap, courseID); err != nil {
		return nil, err
	}
	return analytics.SilentStudents(snap, courseID, window, s.now()), nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
