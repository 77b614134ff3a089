package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
)

func TestCourseHandlerCreate(t *testing.T) {
	r, svcs := newTestRouter(t)

	w := performRequest(r, http.MethodPost, "/api/v1/courses", "prof", map[string]interface{}{
		"code":       "CS102",
		"name":       "Data Structures",
		"department": "CS",
		"semester":   "Fall 2024",
		"lectures":   []string{"Arrays", "Lists"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "CS102", svcs.courses.created.Code)
	assert.Equal(t, []string{"Arrays", "Lists"}, svcs.courses.created.Lectures)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"professor_id":"prof-1"`)
}

func TestCourseHandlerCreatePropagatesConflict(t *testing.T) {
	r, svcs := newTestRouter(t)
	svcs.courses.err = appErrors.Clone(appErrors.ErrConflict, "course code already exists")

	w := performRequest(r, http.MethodPost, "/api/v1/courses", "admin", map[string]interface{}{"code": "CS101"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, w).Error.Code)
}

func TestCourseHandlerGetAndDelete(t *testing.T) {
	r, svcs := newTestRouter(t)

	w := performRequest(r, http.MethodGet, "/api/v1/courses/c1", "student", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodGet, "/api/v1/courses/missing", "student", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(r, http.MethodDelete, "/api/v1/courses/c1", "prof", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "c1", svcs.courses.deleted)
}
