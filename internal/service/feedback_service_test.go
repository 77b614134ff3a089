package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/analytics"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
	"github.com/noah-isme/lecture-intel-api/pkg/events"
)

type fakeFeedbackStore struct {
	created []*models.Feedback
	reads   map[string]map[string]bool
}

func newFakeFeedbackStore() *fakeFeedbackStore {
	return &fakeFeedbackStore{reads: map[string]map[string]bool{}}
}

func (f *fakeFeedbackStore) Create(ctx context.Context, fb *models.Feedback) error {
	fb.ID = fmt.Sprintf("new-%d", len(f.created)+1)
	f.created = append(f.created, fb)
	return nil
}

func (f *fakeFeedbackStore) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	for _, fb := range fixtureSnapshot().Feedback {
		if fb.ID == id {
			return &fb, nil
		}
	}
	for _, fb := range f.created {
		if fb.ID == id {
			return fb, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeFeedbackStore) MarkRead(ctx context.Context, userID, feedbackID string, at time.Time) error {
	if f.reads[userID] == nil {
		f.reads[userID] = map[string]bool{}
	}
	f.reads[userID][feedbackID] = true
	return nil
}

func (f *fakeFeedbackStore) ReadIDs(ctx context.Context, userID string) (map[string]bool, error) {
	out := map[string]bool{}
	for id := range f.reads[userID] {
		out[id] = true
	}
	return out, nil
}

type feedbackFixture struct {
	svc       *FeedbackService
	snapshots *fakeSnapshots
	repo      *fakeFeedbackStore
	cache     *memoryCache
	publisher *recordingPublisher
}

func newFeedbackServiceForTest(t *testing.T) feedbackFixture {
	t.Helper()
	fx := feedbackFixture{
		snapshots: newFakeSnapshots(),
		repo:      newFakeFeedbackStore(),
		cache:     newMemoryCache(),
		publisher: &recordingPublisher{},
	}
	fx.svc = NewFeedbackService(FeedbackServiceParams{
		Snapshots: fx.snapshots,
		Repo:      fx.repo,
		Publisher: fx.publisher,
		Cache:     newTestCache(fx.cache),
		Metrics:   NewMetricsService(),
		Logger:    zap.NewNop(),
	})
	fx.svc.now = func() time.Time { return fixtureNow }
	return fx
}

func listIDs(items []models.FeedbackView) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestFeedbackServiceListScopesToProfessor(t *testing.T) {
	fx := newFeedbackServiceForTest(t)

	list, err := fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2", "f3"}, listIDs(list.Items))
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, analytics.PageSize, list.PageSize)
	assert.False(t, list.HasMore)
	assert.Equal(t, "Intro", list.Items[0].LectureTitle)
	assert.Equal(t, "CS101", list.Items[0].CourseCode)
	assert.Equal(t, "Ana Lima", list.Items[0].StudentName)
}

func TestFeedbackServiceListFiltersAndSearches(t *testing.T) {
	fx := newFeedbackServiceForTest(t)
	require.NoError(t, fx.repo.MarkRead(context.Background(), professorActor.UserID, "f1", fixtureNow))

	cases := []struct {
		name  string
		query models.FeedbackQuery
		want  []string
	}{
		{"unread", models.FeedbackQuery{Filter: models.FilterUnread}, []string{"f2", "f3"}},
		{"unresolved", models.FeedbackQuery{Filter: models.FilterUnresolved}, []string{"f2"}},
		{"low rating", models.FeedbackQuery{Filter: models.FilterLowRating}, []string{"f2"}},
		{"today", models.FeedbackQuery{Filter: models.FilterToday}, []string{"f1"}},
		{"category", models.FeedbackQuery{Filter: models.FilterCategory, Category: "PACE"}, []string{"f1"}},
		{"search comment", models.FeedbackQuery{Search: "Pointers"}, []string{"f2"}},
		{"search lecture", models.FeedbackQuery{Search: "recursion"}, []string{"f3"}},
		{"oldest", models.FeedbackQuery{Sort: models.SortOldest}, []string{"f3", "f2", "f1"}},
		{"rating asc", models.FeedbackQuery{Sort: models.SortRatingAsc}, []string{"f2", "f3", "f1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := fx.svc.List(context.Background(), professorActor, tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, listIDs(list.Items))
		})
	}
}

func TestFeedbackServiceListRejectsBadQuery(t *testing.T) {
	fx := newFeedbackServiceForTest(t)

	_, err := fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{Filter: "popular"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
	assert.Contains(t, err.Error(), "filter must be one of")

	_, err = fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{Filter: models.FilterCategory})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category is required")

	_, err = fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{CourseID: "c2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestFeedbackServiceListRevealsPages(t *testing.T) {
	fx := newFeedbackServiceForTest(t)
	base := fixtureSnapshot()
	feedback := make([]models.Feedback, 0, 25)
	for i := 0; i < 25; i++ {
		feedback = append(feedback, models.Feedback{
			ID:                 fmt.Sprintf("p%02d", i),
			StudentID:          "s1",
			CourseID:           "c1",
			LectureID:          "l1",
			UnderstandingLevel: models.LevelPartial,
			Timestamp:          fixtureNow.Add(-time.Duration(i) * time.Hour),
		})
	}
	fx.snapshots.full = store.New(base.Courses, base.Lectures, base.Topics, base.Students, feedback)

	list, err := fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{Page: 1})
	require.NoError(t, err)
	assert.Len(t, list.Items, 10)
	assert.True(t, list.HasMore)
	assert.Equal(t, 25, list.Total)

	list, err = fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{Page: 2})
	require.NoError(t, err)
	assert.Len(t, list.Items, 20)
	assert.Equal(t, "p00", list.Items[0].ID)

	list, err = fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{Page: 9})
	require.NoError(t, err)
	assert.Len(t, list.Items, 25)
	assert.Equal(t, 3, list.Page)
	assert.False(t, list.HasMore)
}

func TestFeedbackServiceStats(t *testing.T) {
	fx := newFeedbackServiceForTest(t)

	stats, err := fx.svc.Stats(context.Background(), professorActor, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Confused)
	assert.Equal(t, 60, stats.Health)
	assert.Equal(t, 1, stats.Today)
}

func TestFeedbackServiceTodayUsesUTCDate(t *testing.T) {
	fx := newFeedbackServiceForTest(t)
	fx.svc.now = func() time.Time { return fixtureNow.In(time.FixedZone("UTC+13", 13*3600)) }

	stats, err := fx.svc.Stats(context.Background(), professorActor, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Today)

	list, err := fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{Filter: models.FilterToday})
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, listIDs(list.Items))
}

func TestFeedbackServiceExportCSVIgnoresPagination(t *testing.T) {
	fx := newFeedbackServiceForTest(t)

	payload, err := fx.svc.ExportCSV(context.Background(), adminActor, models.FeedbackQuery{Page: 1})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(payload))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"ID", "Lecture", "Course", "Student", "Rating", "Comment", "Date", "Resolved"}, records[0])
	assert.Equal(t, "f1", records[1][0])
	assert.Equal(t, "Yes", records[1][7])
}

func TestFeedbackServiceSubmit(t *testing.T) {
	fx := newFeedbackServiceForTest(t)

	created, err := fx.svc.Submit(context.Background(), studentActor, models.SubmitFeedbackRequest{
		CourseID:           "c1",
		LectureID:          "l2",
		UnderstandingLevel: models.LevelPartial,
		Comment:            "  more examples please ",
		Tags:               []string{" examples "},
		TopicRatings:       []models.TopicRating{{TopicID: "t2", Rating: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, "s1", created.StudentID)
	assert.Equal(t, "more examples please", created.Comment)
	assert.Equal(t, []string{"examples"}, []string(created.Tags))
	assert.Equal(t, fixtureNow, created.Timestamp)
	assert.Equal(t, 1, fx.snapshots.invalidated)
	assert.Equal(t, []string{events.TypeFeedbackSubmitted}, fx.publisher.types())
}

func TestFeedbackServiceSubmitRejectsInvalidInput(t *testing.T) {
	fx := newFeedbackServiceForTest(t)
	valid := models.SubmitFeedbackRequest{CourseID: "c1", LectureID: "l1", UnderstandingLevel: models.LevelFully}

	_, err := fx.svc.Submit(context.Background(), professorActor, valid)
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))

	missing := valid
	missing.UnderstandingLevel = ""
	_, err = fx.svc.Submit(context.Background(), studentActor, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "understanding_level is required")

	wrongLecture := valid
	wrongLecture.LectureID = "l3"
	_, err = fx.svc.Submit(context.Background(), studentActor, wrongLecture)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	foreignTopic := valid
	foreignTopic.TopicRatings = []models.TopicRating{{TopicID: "t3", Rating: 2}}
	_, err = fx.svc.Submit(context.Background(), studentActor, foreignTopic)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	badRating := valid
	badRating.TopicRatings = []models.TopicRating{{TopicID: "t1", Rating: 6}}
	_, err = fx.svc.Submit(context.Background(), studentActor, badRating)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic_ratings[0].rating must be at most 5")

	notEnrolled := models.Actor{UserID: "user-s3", Role: models.RoleStudent, StudentID: "s3"}
	other := valid
	other.CourseID, other.LectureID = "c2", "l3"
	_, err = fx.svc.Submit(context.Background(), notEnrolled, other)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))

	assert.Empty(t, fx.repo.created)
	assert.Zero(t, fx.snapshots.invalidated)
}

func TestFeedbackServiceMarkRead(t *testing.T) {
	fx := newFeedbackServiceForTest(t)

	require.NoError(t, fx.svc.MarkRead(context.Background(), professorActor, "f2"))
	require.NoError(t, fx.svc.MarkRead(context.Background(), professorActor, "f2"))
	assert.True(t, fx.repo.reads[professorActor.UserID]["f2"])
	assert.Contains(t, fx.cache.deleted, "dash:professor:prof-1")

	err := fx.svc.MarkRead(context.Background(), professorActor, "f4")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
	assert.False(t, fx.repo.reads[professorActor.UserID]["f4"])

	err = fx.svc.MarkRead(context.Background(), professorActor, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
	assert.Contains(t, err.Error(), "feedback missing not found")

	require.NoError(t, fx.svc.MarkRead(context.Background(), adminActor, "f4"))

	list, err := fx.svc.List(context.Background(), professorActor, models.FeedbackQuery{Filter: models.FilterUnread})
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f3"}, listIDs(list.Items))
}
