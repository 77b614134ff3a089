package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/pkg/response"
)

type weatherService interface {
	Current(ctx context.Context, city string) (*models.WeatherReport, bool, error)
}

// WeatherHandler serves the dashboard weather widget.
type WeatherHandler struct {
	service     weatherService
	defaultCity string
}

// NewWeatherHandler constructs the handler. defaultCity answers requests without ?city.
func NewWeatherHandler(service weatherService, defaultCity string) *WeatherHandler {
	return &WeatherHandler{service: service, defaultCity: defaultCity}
}

// Current godoc
// @Summary Current weather for a city
// @Description Falls back to a deterministic synthetic reading when the upstream is unavailable
// @Tags Weather
// @Produce json
// @Security BearerAuth
// @Param city query string false "City name"
// @Success 200 {object} response.Envelope
// @Router /weather [get]
func (h *WeatherHandler) Current(c *gin.Context) {
	city := c.DefaultQuery("city", h.defaultCity)
	report, hit, err := h.service.Current(c.Request.Context(), city)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, report, hit)
}
