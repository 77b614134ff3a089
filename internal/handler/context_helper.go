package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lecture-intel-api/internal/middleware"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
	"github.com/noah-isme/lecture-intel-api/pkg/response"
)

// actorFromContext resolves the authenticated caller and writes a 401 when absent.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return actor, ok
}

// respondCached writes a 200 envelope carrying the cache_hit meta flag.
func respondCached(c *gin.Context, data interface{}, hit bool) {
	middleware.SetCacheHit(c, hit)
	response.OK(c, data, middleware.ExtractMeta(c))
}

// queryInt parses an optional integer query parameter. Missing values yield fallback.
func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Validationf("%s must be an integer", name)
	}
	return value, nil
}
