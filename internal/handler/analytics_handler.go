package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecture-intel-api/internal/middleware"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/pkg/response"
)

type analyticsService interface {
	CourseHealth(ctx context.Context, actor models.Actor, courseID string) (int, bool, error)
	DailyMetrics(ctx context.Context, actor models.Actor, courseID string, days int) ([]models.DailyMetric, bool, error)
	HourlyMetrics(ctx context.Context, actor models.Actor, courseID, date string) ([]models.HourlyMetric, bool, error)
	TopicDifficulty(ctx context.Context, actor models.Actor, courseID string) ([]models.TopicDifficulty, bool, error)
	SilentStudents(ctx context.Context, actor models.Actor, courseID string, windowDays int) ([]models.SilentStudent, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes per-course analytics endpoints.
type AnalyticsHandler struct {
	service analyticsService
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(service analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// CourseHealth godoc
// @Summary Course health score (0-100)
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/health [get]
func (h *AnalyticsHandler) CourseHealth(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	health, hit, err := h.service.CourseHealth(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, gin.H{"course_id": courseID, "health": health}, hit)
}

// DailyMetrics godoc
// @Summary Daily understanding, feedback and engagement series
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param days query int false "Window length: 7, 14 or 30 (default 7)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/metrics/daily [get]
func (h *AnalyticsHandler) DailyMetrics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	days, err := queryInt(c, "days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	series, hit, err := h.service.DailyMetrics(c.Request.Context(), actor, c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, series, hit)
}

// HourlyMetrics godoc
// @Summary Hourly buckets for a single day
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param date query string false "Date (YYYY-MM-DD). Empty aggregates every day"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/metrics/hourly [get]
func (h *AnalyticsHandler) HourlyMetrics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	series, hit, err := h.service.HourlyMetrics(c.Request.Context(), actor, c.Param("id"), strings.TrimSpace(c.Query("date")))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, series, hit)
}

// TopicDifficulty godoc
// @Summary Topics ranked from hardest to easiest
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/topics/difficulty [get]
func (h *AnalyticsHandler) TopicDifficulty(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	topics, hit, err := h.service.TopicDifficulty(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, topics, hit)
}

// SilentStudents godoc
// @Summary Enrolled students without recent feedback
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param window_days query int false "Silence window in days"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/silent-students [get]
func (h *AnalyticsHandler) SilentStudents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	window, err := queryInt(c, "window_days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.service.SilentStudents(c.Request.Context(), actor, c.Param("id"), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, students, middleware.ExtractMeta(c))
}

// System godoc
// @Summary Cache and request instrumentation summary
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.OK(c, h.service.SystemMetrics())
}
