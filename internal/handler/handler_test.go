package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/service"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

var testTokens = stubTokens{
	"admin":   {UserID: "admin-1", Role: models.RoleAdmin},
	"prof":    {UserID: "prof-1", Role: models.RoleProfessor},
	"student": {UserID: "user-s1", Role: models.RoleStudent, StudentID: "s1"},
}

type authStub struct{}

func (authStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "prof", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (authStub) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

type courseStub struct {
	created models.CreateCourseRequest
	deleted string
	err     error
}

func (s *courseStub) List(ctx context.Context, actor models.Actor) ([]models.Course, error) {
	return []models.Course{{ID: "c1", Code: "CS101"}}, s.err
}

func (s *courseStub) Get(ctx context.Context, actor models.Actor, id string) (*models.CourseDetail, error) {
	if id != "c1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return &models.CourseDetail{Course: models.Course{ID: "c1"}, Health: 60}, nil
}

func (s *courseStub) Create(ctx context.Context, actor models.Actor, req models.CreateCourseRequest) (*models.Course, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Course{ID: "c9", Code: req.Code, ProfessorID: actor.UserID}, nil
}

func (s *courseStub) Delete(ctx context.Context, actor models.Actor, id string) error {
	s.deleted = id
	return s.err
}

type analyticsStub struct {
	days   int
	window int
	date   string
	hit    bool
}

func (s *analyticsStub) CourseHealth(ctx context.Context, actor models.Actor, courseID string) (int, bool, error) {
	return 60, s.hit, nil
}

func (s *analyticsStub) DailyMetrics(ctx context.Context, actor models.Actor, courseID string, days int) ([]models.DailyMetric, bool, error) {
	s.days = days
	return []models.DailyMetric{{Date: "2024-03-15"}}, s.hit, nil
}

func (s *analyticsStub) HourlyMetrics(ctx context.Context, actor models.Actor, courseID, date string) ([]models.HourlyMetric, bool, error) {
	s.date = date
	return []models.HourlyMetric{{Hour: 9}}, s.hit, nil
}

func (s *analyticsStub) TopicDifficulty(ctx context.Context, actor models.Actor, courseID string) ([]models.TopicDifficulty, bool, error) {
	return []models.TopicDifficulty{{Topic: "Loops"}}, s.hit, nil
}

func (s *analyticsStub) SilentStudents(ctx context.Context, actor models.Actor, courseID string, windowDays int) ([]models.SilentStudent, error) {
	s.window = windowDays
	return []models.SilentStudent{}, nil
}

func (s *analyticsStub) SystemMetrics() models.SystemMetrics {
	return models.SystemMetrics{CacheHits: 3}
}

type insightStub struct {
	err error
}

func (s *insightStub) Generate(ctx context.Context, actor models.Actor, courseID string) (*models.InsightReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.InsightReport{CourseID: courseID, Source: "fallback", RequestToken: 1}, nil
}

func (s *insightStub) Latest(ctx context.Context, actor models.Actor, courseID string) (*models.InsightReport, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no insights generated yet")
}

type feedbackStub struct {
	query     models.FeedbackQuery
	submitted models.SubmitFeedbackRequest
	readID    string
	actor     models.Actor
}

func (s *feedbackStub) List(ctx context.Context, actor models.Actor, q models.FeedbackQuery) (*models.FeedbackList, error) {
	s.query = q
	items := []models.FeedbackView{{Feedback: models.Feedback{ID: "f1"}}, {Feedback: models.Feedback{ID: "f2"}}}
	return &models.FeedbackList{Items: items, Total: 12, Page: 1, PageSize: 10, HasMore: true}, nil
}

func (s *feedbackStub) Stats(ctx context.Context, actor models.Actor, courseID string) (models.FeedbackStats, error) {
	return models.FeedbackStats{Total: 3}, nil
}

func (s *feedbackStub) ExportCSV(ctx context.Context, actor models.Actor, q models.FeedbackQuery) ([]byte, error) {
	s.query = q
	return []byte("ID,Student\nf1,Ana Lima\n"), nil
}

func (s *feedbackStub) Submit(ctx context.Context, actor models.Actor, req models.SubmitFeedbackRequest) (*models.Feedback, error) {
	s.actor = actor
	s.submitted = req
	return &models.Feedback{ID: "f9", StudentID: actor.StudentID, CourseID: req.CourseID}, nil
}

func (s *feedbackStub) MarkRead(ctx context.Context, actor models.Actor, feedbackID string) error {
	s.readID = feedbackID
	return nil
}

type dashboardStub struct {
	hit bool
}

func (s *dashboardStub) Professor(ctx context.Context, actor models.Actor) (*models.ProfessorDashboard, bool, error) {
	return &models.ProfessorDashboard{OverallHealth: 60}, s.hit, nil
}

func (s *dashboardStub) Student(ctx context.Context, actor models.Actor) (*models.StudentDashboard, bool, error) {
	return &models.StudentDashboard{StudentID: actor.StudentID}, s.hit, nil
}

type weatherStub struct {
	city string
}

func (s *weatherStub) Current(ctx context.Context, city string) (*models.WeatherReport, bool, error) {
	s.city = city
	return &models.WeatherReport{Source: models.WeatherSourceSynthetic}, false, nil
}

type reportServiceMock struct {
	createResp  *models.ReportJob
	createErr   error
	statusResp  *models.ReportStatusResponse
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
}

func (m *reportServiceMock) CreateJob(ctx context.Context, actor models.Actor, req models.ReportRequest) (*models.ReportJob, error) {
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, actor models.Actor, id string) (*models.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

type testServices struct {
	courses   *courseStub
	analytics *analyticsStub
	insights  *insightStub
	feedback  *feedbackStub
	dashboard *dashboardStub
	weather   *weatherStub
	reports   *reportServiceMock
}

func newTestRouter(t *testing.T) (*gin.Engine, *testServices) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svcs := &testServices{
		courses:   &courseStub{},
		analytics: &analyticsStub{},
		insights:  &insightStub{},
		feedback:  &feedbackStub{},
		dashboard: &dashboardStub{},
		weather:   &weatherStub{},
		reports:   &reportServiceMock{},
	}
	feedback := NewFeedbackHandler(svcs.feedback)
	feedback.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	r := NewRouter(RouterConfig{
		APIPrefix: "/api/v1",
		Tokens:    testTokens,
		Auth:      NewAuthHandler(authStub{}),
		Courses:   NewCourseHandler(svcs.courses),
		Analytics: NewAnalyticsHandler(svcs.analytics),
		Insights:  NewInsightHandler(svcs.insights),
		Feedback:  feedback,
		Dashboard: NewDashboardHandler(svcs.dashboard),
		Weather:   NewWeatherHandler(svcs.weather, "Lisbon"),
		Reports:   NewReportHandler(svcs.reports, nil),
		Metrics:   NewMetricsHandler(nil, nil),
	})
	return r, svcs
}

func performRequest(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, _ := json.Marshal(v)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type testEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}
