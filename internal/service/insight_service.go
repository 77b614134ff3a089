package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/analytics"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
)

const insightSystemPrompt = `You analyse classroom feedback for a professor. Reply with a JSON object with exactly these keys:
"top_confusing_topics" (array of topic names, hardest first),
"revision_plan" (array of short actionable steps),
"silent_students" (array of student names who have not given recent feedback),
"teaching_insights" (array of short observations about teaching effectiveness).`

// maxPromptFeedback caps how many feedback entries are embedded in a prompt.
const maxPromptFeedback = 200

// ErrInsightSuperseded is returned to a caller whose generation was replaced
// by a newer request for the same course.
var ErrInsightSuperseded = appErrors.New("INSIGHT_SUPERSEDED", http.StatusConflict, "a newer insight request replaced this one")

type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// InsightConfig tunes insight generation.
type InsightConfig struct {
	CacheTTL     time.Duration
	SilentWindow time.Duration
}

type insightRequest struct {
	token  uint64
	cancel context.CancelFunc
}

// InsightService generates AI teaching insights per course. Each generation
// gets a fresh request token and cancels the one in flight for the same
// course; only the result carrying the current token is stored.
type InsightService struct {
	snapshots snapshotLoader
	llm       completer
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       InsightConfig
	now       func() time.Time

	mu       sync.Mutex
	seq      uint64
	inflight map[string]insightRequest
	latest   map[string]models.InsightReport
}

// NewInsightService constructs the service. A nil llm always produces the
// fallback report.
func NewInsightService(snapshots snapshotLoader, llm completer, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg InsightConfig) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	if cfg.SilentWindow <= 0 {
		cfg.SilentWindow = 7 * 24 * time.Hour
	}
	return &InsightService{
		snapshots: snapshots,
		llm:       llm,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		inflight:  make(map[string]insightRequest),
		latest:    make(map[string]models.InsightReport),
	}
}

// Generate produces and stores a fresh insight report for the course.
func (s *InsightService) Generate(ctx context.Context, actor models.Actor, courseID string) (*models.InsightReport, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	course, err := courseInScope(snap, courseID)
	if err != nil {
		return nil, err
	}

	reqCtx, token := s.begin(ctx, courseID)
	defer s.finish(courseID, token)

	report := s.compose(reqCtx, snap, course)
	report.RequestToken = token

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reqCtx.Err() != nil {
		return nil, ErrInsightSuperseded
	}
	if !s.commit(ctx, courseID, token, report) {
		return nil, ErrInsightSuperseded
	}
	s.metrics.RecordInsight(report.Source)
	return &report, nil
}

// Latest returns the stored report for the course.
func (s *InsightService) Latest(ctx context.Context, actor models.Actor, courseID string) (*models.InsightReport, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	if _, err := courseInScope(snap, courseID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	report, ok := s.latest[courseID]
	s.mu.Unlock()
	if ok {
		return &report, nil
	}
	if hit, err := s.cache.Get(ctx, insightKey(courseID), &report); err == nil && hit {
		return &report, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no insights generated for course")
}

func (s *InsightService) begin(ctx context.Context, courseID string) (context.Context, uint64) {
	reqCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if prev, ok := s.inflight[courseID]; ok {
		prev.cancel()
	}
	s.inflight[courseID] = insightRequest{token: s.seq, cancel: cancel}
	return reqCtx, s.seq
}

func (s *InsightService) finish(courseID string, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[courseID]; ok && cur.token == token {
		cur.cancel()
		delete(s.inflight, courseID)
	}
}

// commit stores report only while token is still the course's current one.
func (s *InsightService) commit(ctx context.Context, courseID string, token uint64, report models.InsightReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[courseID]; !ok || cur.token != token {
		return false
	}
	s.latest[courseID] = report
	_ = s.cache.Set(ctx, insightKey(courseID), report, s.cfg.CacheTTL)
	return true
}

func (s *InsightService) compose(ctx context.Context, snap *store.Snapshot, course models.Course) models.InsightReport {
	report := models.InsightReport{CourseID: course.ID, GeneratedAt: s.now().UTC()}
	if s.llm == nil {
		return s.fallback(snap, course, report)
	}

	prompt, err := buildInsightPrompt(snap, course, s.cfg.SilentWindow, s.now())
	if err != nil {
		s.logger.Warn("insight prompt", zap.String("course_id", course.ID), zap.Error(err))
		return s.fallback(snap, course, report)
	}
	content, err := s.llm.Complete(ctx, insightSystemPrompt, prompt)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("insight completion failed, using fallback", zap.String("course_id", course.ID), zap.Error(err))
		}
		return s.fallback(snap, course, report)
	}

	var payload insightPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil || payload.empty() {
		s.logger.Warn("insight completion unparsable, using fallback", zap.String("course_id", course.ID), zap.Error(err))
		return s.fallback(snap, course, report)
	}
	report.TopConfusingTopics = nonNil(payload.TopConfusingTopics)
	report.RevisionPlan = nonNil(payload.RevisionPlan)
	report.SilentStudents = nonNil(payload.SilentStudents)
	report.TeachingInsights = nonNil(payload.TeachingInsights)
	report.Source = models.InsightSourceLLM
	return report
}

// fallback fills the report from local analytics and fixed guidance text.
func (s *InsightService) fallback(snap *store.Snapshot, course models.Course, report models.InsightReport) models.InsightReport {
	feedback := snap.FeedbackForCourse(course.ID)
	report.TopConfusingTopics = []string{}
	for _, topic := range analytics.TopicDifficulty(feedback, snap.TopicName) {
		if len(report.TopConfusingTopics) == 3 {
			break
		}
		report.TopConfusingTopics = append(report.TopConfusingTopics, topic.Topic)
	}
	report.SilentStudents = []string{}
	for _, silent := range analytics.SilentStudents(snap, course.ID, s.cfg.SilentWindow, s.now()) {
		report.SilentStudents = append(report.SilentStudents, silent.Name)
	}
	report.RevisionPlan = []string{
		"Revisit the lowest rated topics at the start of the next lecture",
		"Share worked examples for concepts flagged as confusing",
		"Schedule a short Q&A session before moving to new material",
	}
	report.TeachingInsights = []string{
		fmt.Sprintf("Course health is %d%% across %d feedback entries", analytics.HealthOf(feedback), len(feedback)),
		"Encourage silent students to submit feedback after each lecture",
	}
	report.Source = models.InsightSourceFallback
	return report
}

type insightPayload struct {
	TopConfusingTopics []string `json:"top_confusing_topics"`
	RevisionPlan       []string `json:"revision_plan"`
	SilentStudents     []string `json:"silent_students"`
	TeachingInsights   []string `json:"teaching_insights"`
}

func (p insightPayload) empty() bool {
	return len(p.TopConfusingTopics) == 0 && len(p.RevisionPlan) == 0 && len(p.SilentStudents) == 0 && len(p.TeachingInsights) == 0
}

type promptFeedback struct {
	Lecture       string         `json:"lecture"`
	Student       string         `json:"student"`
	Understanding string         `json:"understanding"`
	Comment       string         `json:"comment,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Topics        map[string]int `json:"topic_ratings,omitempty"`
	Date          string         `json:"date"`
}

type promptBody struct {
	Course         string                   `json:"course"`
	Name           string                   `json:"name"`
	Health         int                      `json:"health"`
	Difficulty     []models.TopicDifficulty `json:"topic_difficulty"`
	SilentStudents []string                 `json:"silent_students"`
	Feedback       []promptFeedback         `json:"feedback"`
}

func buildInsightPrompt(snap *store.Snapshot, course models.Course, window time.Duration, now time.Time) (string, error) {
	feedback := snap.FeedbackForCourse(course.ID)
	body := promptBody{
		Course:         course.Code,
		Name:           course.Name,
		Health:         analytics.HealthOf(feedback),
		Difficulty:     analytics.TopicDifficulty(feedback, snap.TopicName),
		SilentStudents: []string{},
		Feedback:       make([]promptFeedback, 0, min(len(feedback), maxPromptFeedback)),
	}
	for _, silent := range analytics.SilentStudents(snap, course.ID, window, now) {
		body.SilentStudents = append(body.SilentStudents, silent.Name)
	}
	start := max(0, len(feedback)-maxPromptFeedback)
	for _, f := range feedback[start:] {
		entry := promptFeedback{
			Lecture:       snap.LectureTitle(f.LectureID),
			Student:       snap.StudentName(f.StudentID),
			Understanding: string(f.UnderstandingLevel),
			Comment:       f.Comment,
			Tags:          f.Tags,
			Date:          f.Timestamp.Format("2006-01-02"),
		}
		if len(f.TopicRatings) > 0 {
			entry.Topics = make(map[string]int, len(f.TopicRatings))
			for _, tr := range f.TopicRatings {
				entry.Topics[snap.TopicName(tr.TopicID)] = tr.Rating
			}
		}
		body.Feedback = append(body.Feedback, entry)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Analyse this course feedback and answer with the JSON object described.\n")
	b.Write(data)
	return b.String(), nil
}

func insightKey(courseID string) string {
	return cacheKey(cacheNamespaceInsight, courseID)
}
