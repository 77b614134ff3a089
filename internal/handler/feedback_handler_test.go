package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

func TestFeedbackListBindsQueryAndPaginates(t *testing.T) {
	r, svcs := newTestRouter(t)

	w := performRequest(r, http.MethodGet, "/api/v1/feedback?course_id=c1&q=pointers&filter=category&category=pace&sort=oldest&page=2", "prof", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, models.FeedbackQuery{
		CourseID: "c1",
		Search:   "pointers",
		Filter:   models.FilterCategory,
		Category: "pace",
		Sort:     models.SortOldest,
		Page:     2,
	}, svcs.feedback.query)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 12, env.Pagination.TotalCount)
	assert.Equal(t, 10, env.Pagination.PageSize)
	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2)
	assert.True(t, env.Pagination.HasMore)
}

func TestFeedbackListRejectsMalformedPage(t *testing.T) {
	r, _ := newTestRouter(t)

	w := performRequest(r, http.MethodGet, "/api/v1/feedback?page=two", "prof", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error.Code)
}

func TestFeedbackExportCSV(t *testing.T) {
	r, svcs := newTestRouter(t)

	w := performRequest(r, http.MethodGet, "/api/v1/feedback/export.csv?filter=unread", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="feedback_export_2024-03-15.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "ID,Student\nf1,Ana Lima\n", w.Body.String())
	assert.Equal(t, models.FilterUnread, svcs.feedback.query.Filter)
}

func TestFeedbackSubmit(t *testing.T) {
	r, svcs := newTestRouter(t)

	w := performRequest(r, http.MethodPost, "/api/v1/feedback", "student", map[string]interface{}{
		"course_id":           "c1",
		"lecture_id":          "l1",
		"understanding_level": "partial",
		"tags":                []string{"pace"},
		"topic_ratings":       []map[string]interface{}{{"topic_id": "t1", "rating": 4}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s1", svcs.feedback.actor.StudentID)
	assert.Equal(t, models.LevelPartial, svcs.feedback.submitted.UnderstandingLevel)
	require.Len(t, svcs.feedback.submitted.TopicRatings, 1)
	assert.Equal(t, 4, svcs.feedback.submitted.TopicRatings[0].Rating)

	w = performRequest(r, http.MethodPost, "/api/v1/feedback", "student", `{"course_id": 7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackMarkReadAndStats(t *testing.T) {
	r, svcs := newTestRouter(t)

	w := performRequest(r, http.MethodPost, "/api/v1/feedback/f2/read", "prof", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "f2", svcs.feedback.readID)

	w = performRequest(r, http.MethodGet, "/api/v1/feedback/stats", "prof", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.FeedbackStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &stats))
	assert.Equal(t, 3, stats.Total)
}
