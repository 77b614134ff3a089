package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterEnforcesRoles(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{"anonymous courses", http.MethodGet, "/api/v1/courses", "", nil, http.StatusUnauthorized},
		{"student lists courses", http.MethodGet, "/api/v1/courses", "student", nil, http.StatusOK},
		{"student creates course", http.MethodPost, "/api/v1/courses", "student", map[string]interface{}{}, http.StatusForbidden},
		{"student course health", http.MethodGet, "/api/v1/courses/c1/health", "student", nil, http.StatusOK},
		{"student daily metrics", http.MethodGet, "/api/v1/courses/c1/metrics/daily", "student", nil, http.StatusForbidden},
		{"student feedback list", http.MethodGet, "/api/v1/feedback", "student", nil, http.StatusForbidden},
		{"professor submits feedback", http.MethodPost, "/api/v1/feedback", "prof", map[string]interface{}{}, http.StatusForbidden},
		{"professor student dashboard", http.MethodGet, "/api/v1/dashboard/student", "prof", nil, http.StatusForbidden},
		{"student professor dashboard", http.MethodGet, "/api/v1/dashboard/professor", "student", nil, http.StatusForbidden},
		{"admin professor dashboard", http.MethodGet, "/api/v1/dashboard/professor", "admin", nil, http.StatusOK},
		{"professor system metrics", http.MethodGet, "/api/v1/analytics/system", "prof", nil, http.StatusForbidden},
		{"admin system metrics", http.MethodGet, "/api/v1/analytics/system", "admin", nil, http.StatusOK},
		{"student reports", http.MethodPost, "/api/v1/reports", "student", map[string]interface{}{}, http.StatusForbidden},
		{"invalid token", http.MethodGet, "/api/v1/weather", "forged", nil, http.StatusUnauthorized},
		{"health", http.MethodGet, "/health", "", nil, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performRequest(r, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestRouterResponsesCarryRequestMeta(t *testing.T) {
	r, _ := newTestRouter(t)

	w := performRequest(r, http.MethodGet, "/api/v1/courses", "prof", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	env := decodeEnvelope(t, w)
	assert.NotEmpty(t, env.Meta["request_id"])
	assert.EqualValues(t, 1, env.Meta["count"])
}

func TestAuthRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	w := performRequest(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "p@example.edu", "password": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "p@example.edu", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performRequest(r, http.MethodPost, "/api/v1/auth/login", "", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error.Code)

	w = performRequest(r, http.MethodGet, "/api/v1/auth/me", "student", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-s1")
}

func TestWeatherRouteDefaultsCity(t *testing.T) {
	r, svcs := newTestRouter(t)

	w := performRequest(r, http.MethodGet, "/api/v1/weather", "student", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lisbon", svcs.weather.city)

	performRequest(r, http.MethodGet, "/api/v1/weather?city=Porto", "student", nil)
	assert.Equal(t, "Porto", svcs.weather.city)
}
