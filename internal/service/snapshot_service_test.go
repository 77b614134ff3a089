package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
)

// snapshotRepoStub serves every snapshot repository from the fixture.
type snapshotRepoStub struct {
	calls   map[string]int
	lastIDs []string
	listErr error
}

func newSnapshotRepoStub() *snapshotRepoStub {
	return &snapshotRepoStub{calls: map[string]int{}}
}

func (r *snapshotRepoStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	r.calls["courses"]++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Course
	for _, c := range fixtureSnapshot().Courses {
		if filter.ProfessorID != "" && c.ProfessorID != filter.ProfessorID {
			continue
		}
		if filter.StudentID != "" && !contains(c.StudentIDs, filter.StudentID) {
			continue
		}
		c.StudentIDs, c.LectureIDs = nil, nil
		out = append(out, c)
	}
	return out, nil
}

func (r *snapshotRepoStub) Rosters(ctx context.Context, courseIDs []string) (map[string][]string, error) {
	r.calls["rosters"]++
	r.lastIDs = courseIDs
	out := map[string][]string{}
	for _, c := range fixtureSnapshot().Courses {
		if courseIDs == nil || contains(courseIDs, c.ID) {
			out[c.ID] = c.StudentIDs
		}
	}
	return out, nil
}

type snapshotLectureStub struct{ *snapshotRepoStub }

func (r snapshotLectureStub) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Lecture, error) {
	r.calls["lectures"]++
	var out []models.Lecture
	for _, l := range fixtureSnapshot().Lectures {
		if courseIDs == nil || contains(courseIDs, l.CourseID) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r snapshotLectureStub) TopicsByCourses(ctx context.Context, courseIDs []string) ([]models.Topic, error) {
	r.calls["topics"]++
	return nil, nil
}

type snapshotStudentStub struct{ *snapshotRepoStub }

func (r snapshotStudentStub) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Student, error) {
	r.calls["students"]++
	out := []models.Student{}
	for _, s := range fixtureSnapshot().Students {
		s.CourseIDs = nil
		out = append(out, s)
	}
	return out, nil
}

type snapshotFeedbackStub struct{ *snapshotRepoStub }

func (r snapshotFeedbackStub) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Feedback, error) {
	r.calls["feedback"]++
	var out []models.Feedback
	for _, f := range fixtureSnapshot().Feedback {
		if courseIDs == nil || contains(courseIDs, f.CourseID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func newSnapshotServiceForTest(t *testing.T) (*SnapshotService, *snapshotRepoStub, *memoryCache) {
	t.Helper()
	repo := newSnapshotRepoStub()
	cache := newMemoryCache()
	svc := NewSnapshotService(SnapshotServiceParams{
		Courses:  repo,
		Lectures: snapshotLectureStub{repo},
		Students: snapshotStudentStub{repo},
		Feedback: snapshotFeedbackStub{repo},
		Cache:    newTestCache(cache),
		Metrics:  NewMetricsService(),
		Logger:   zap.NewNop(),
	})
	return svc, repo, cache
}

func TestSnapshotServiceLoadBuildsScopedSnapshot(t *testing.T) {
	svc, repo, cache := newSnapshotServiceForTest(t)

	snap, hit, err := svc.Load(context.Background(), models.CourseFilter{ProfessorID: "prof-1"})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, snap.Courses, 1)
	assert.Equal(t, []string{"c1"}, repo.lastIDs)
	assert.Equal(t, []string{"s1", "s2", "s3"}, snap.Courses[0].StudentIDs)
	assert.Equal(t, []string{"l1", "l2"}, snap.Courses[0].LectureIDs)
	assert.Len(t, snap.Feedback, 3)
	assert.NotNil(t, snap.Topics)

	ana, ok := snap.Student("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"c1"}, ana.CourseIDs)
	assert.True(t, cache.has("snapshot:v2:professor:prof-1"))

	cached, hit, err := svc.Load(context.Background(), models.CourseFilter{ProfessorID: "prof-1"})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, snap.Courses, cached.Courses)
	assert.Equal(t, 1, repo.calls["courses"])
}

func TestSnapshotServiceEmptyScopeLoadsNothing(t *testing.T) {
	svc, repo, _ := newSnapshotServiceForTest(t)

	snap, _, err := svc.Load(context.Background(), models.CourseFilter{ProfessorID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, snap.Courses)
	assert.NotNil(t, snap.Feedback)
	assert.Zero(t, repo.calls["rosters"])
	assert.Zero(t, repo.calls["feedback"])
}

func TestSnapshotServiceAdminLoadsEverything(t *testing.T) {
	svc, repo, _ := newSnapshotServiceForTest(t)

	snap, _, err := svc.Load(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.Nil(t, repo.lastIDs)
	assert.Len(t, snap.Courses, 2)
	assert.Len(t, snap.Feedback, 4)
	ana, _ := snap.Student("s1")
	assert.Equal(t, []string{"c1", "c2"}, ana.CourseIDs)
}

func TestSnapshotServiceLoadError(t *testing.T) {
	svc, repo, _ := newSnapshotServiceForTest(t)
	repo.listErr = errors.New("connection refused")

	_, _, err := svc.Load(context.Background(), models.CourseFilter{})
	assert.Equal(t, appErrors.ErrInternal.Code, errorCode(err))
}

func TestSnapshotServiceInvalidateDropsDerivedKeys(t *testing.T) {
	svc, _, cache := newSnapshotServiceForTest(t)
	_, _, err := svc.Load(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), "analytics:health:c1", 60, 0))
	require.NoError(t, cache.Set(context.Background(), "insight:c1", "kept", 0))

	svc.Invalidate(context.Background())

	assert.False(t, cache.has("snapshot:v2:all"))
	assert.False(t, cache.has("analytics:health:c1"))
	assert.True(t, cache.has("insight:c1"))
	assert.ElementsMatch(t, []string{"snapshot:*", "analytics:*", "dash:*"}, cache.deleted)
}

func TestScopeFor(t *testing.T) {
	scope, err := ScopeFor(adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.CourseFilter{}, scope)

	scope, err = ScopeFor(professorActor)
	require.NoError(t, err)
	assert.Equal(t, models.CourseFilter{ProfessorID: "prof-1"}, scope)

	scope, err = ScopeFor(studentActor)
	require.NoError(t, err)
	assert.Equal(t, models.CourseFilter{StudentID: "s1"}, scope)

	_, err = ScopeFor(models.Actor{UserID: "x", Role: models.RoleStudent})
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))

	_, err = ScopeFor(models.Actor{UserID: "x", Role: "GUEST"})
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))
}

func TestCacheKeyEscapesParts(t *testing.T) {
	assert.Equal(t, "analytics:daily:c1:7", cacheKey(cacheNamespaceAnalytics, "daily", "c1", "", "7"))
	assert.Equal(t, "weather:a|b", cacheKey(cacheNamespaceWeather, "a:b"))
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilCache *CacheService
	hit, err := nilCache.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilCache.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, nilCache.Invalidate(context.Background(), "k*"))

	value, hit, err := cached(context.Background(), nilCache, "k", 0, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, value)
}
