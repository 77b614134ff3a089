package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
	"github.com/noah-isme/lecture-intel-api/pkg/response"
)

type feedbackService interface {
	List(ctx context.Context, actor models.Actor, q models.FeedbackQuery) (*models.FeedbackList, error)
	Stats(ctx context.Context, actor models.Actor, courseID string) (models.FeedbackStats, error)
	ExportCSV(ctx context.Context, actor models.Actor, q models.FeedbackQuery) ([]byte, error)
	Submit(ctx context.Context, actor models.Actor, req models.SubmitFeedbackRequest) (*models.Feedback, error)
	MarkRead(ctx context.Context, actor models.Actor, feedbackID string) error
}

// FeedbackHandler exposes the feedback list, stats, export and submission endpoints.
type FeedbackHandler struct {
	service feedbackService
	now     func() time.Time
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(service feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service, now: time.Now}
}

func bindFeedbackQuery(c *gin.Context) (models.FeedbackQuery, error) {
	var q models.FeedbackQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return q, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback query")
	}
	return q, nil
}

// List godoc
// @Summary Filtered, searched and sorted feedback list
// @Description Pages are cumulative: page N reveals the first N*10 matching items
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Param course_id query string false "Restrict to a course"
// @Param q query string false "Case-insensitive search over comment, student, course and lecture"
// @Param filter query string false "all|unread|unresolved|low_rating|high_rating|today|category"
// @Param category query string false "Tag to match when filter=category"
// @Param sort query string false "newest|oldest|rating_desc|rating_asc|course"
// @Param page query int false "Revealed page count (default 1)"
// @Success 200 {object} response.Envelope
// @Router /feedback [get]
func (h *FeedbackHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	q, err := bindFeedbackQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	list, err := h.service.List(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{
		Page:       list.Page,
		PageSize:   list.PageSize,
		TotalCount: list.Total,
		HasMore:    list.HasMore,
	}
	response.JSON(c, http.StatusOK, list.Items, pagination)
}

// Stats godoc
// @Summary Feedback counters by understanding level
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Param course_id query string false "Restrict to a course"
// @Success 200 {object} response.Envelope
// @Router /feedback/stats [get]
func (h *FeedbackHandler) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), actor, c.Query("course_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportCSV godoc
// @Summary Download the filtered feedback list as CSV
// @Tags Feedback
// @Produce text/csv
// @Security BearerAuth
// @Param course_id query string false "Restrict to a course"
// @Param q query string false "Search term"
// @Param filter query string false "Filter"
// @Param category query string false "Tag for filter=category"
// @Param sort query string false "Sort order"
// @Success 200 {file} file
// @Router /feedback/export.csv [get]
func (h *FeedbackHandler) ExportCSV(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	q, err := bindFeedbackQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.service.ExportCSV(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("feedback_export_%s.csv", h.now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// Submit godoc
// @Summary Submit lecture feedback
// @Tags Feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SubmitFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}
	feedback, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feedback)
}

// MarkRead godoc
// @Summary Mark feedback as read for the caller
// @Tags Feedback
// @Security BearerAuth
// @Param id path string true "Feedback ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /feedback/{id}/read [post]
func (h *FeedbackHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
