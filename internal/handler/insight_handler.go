package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/pkg/response"
)

type insightService interface {
	Generate(ctx context.Context, actor models.Actor, courseID string) (*models.InsightReport, error)
	Latest(ctx context.Context, actor models.Actor, courseID string) (*models.InsightReport, error)
}

// InsightHandler serves AI teaching insights.
type InsightHandler struct {
	service insightService
}

// NewInsightHandler constructs the handler.
func NewInsightHandler(service insightService) *InsightHandler {
	return &InsightHandler{service: service}
}

// Generate godoc
// @Summary Generate teaching insights for a course
// @Description Only the most recent request per course is honoured; earlier callers receive 409
// @Tags Insights
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/insights [post]
func (h *InsightHandler) Generate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Generate(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Latest godoc
// @Summary Last generated insights for a course
// @Tags Insights
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/insights [get]
func (h *InsightHandler) Latest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Latest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
