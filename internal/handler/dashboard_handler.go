package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/pkg/response"
)

type dashboardService interface {
	Professor(ctx context.Context, actor models.Actor) (*models.ProfessorDashboard, bool, error)
	Student(ctx context.Context, actor models.Actor) (*models.StudentDashboard, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Professor godoc
// @Summary Professor dashboard
// @Description Course health overview, low-health courses, silent-student alerts and recent feedback
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/professor [get]
func (h *DashboardHandler) Professor(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Professor(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, summary, cacheHit)
}

// Student godoc
// @Summary Student dashboard
// @Description Enrolled courses with pending lectures and the caller's own submissions
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Student(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, summary, cacheHit)
}
