package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
	"github.com/noah-isme/lecture-intel-api/pkg/events"
)

var fixtureNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

var (
	adminActor     = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	professorActor = models.Actor{UserID: "prof-1", Role: models.RoleProfessor}
	otherProfessor = models.Actor{UserID: "prof-2", Role: models.RoleProfessor}
	studentActor   = models.Actor{UserID: "user-s1", Role: models.RoleStudent, StudentID: "s1"}
)

// fixtureSnapshot holds two courses. CS101 (prof-1) has three students and
// three feedback entries; s3 never submitted. MA201 (prof-2) has one entry.
func fixtureSnapshot() *store.Snapshot {
	courses := []models.Course{
		{ID: "c1", Code: "CS101", Name: "Intro to Programming", ProfessorID: "prof-1", StudentIDs: []string{"s1", "s2", "s3"}, LectureIDs: []string{"l1", "l2"}},
		{ID: "c2", Code: "MA201", Name: "Linear Algebra", ProfessorID: "prof-2", StudentIDs: []string{"s1"}, LectureIDs: []string{"l3"}},
	}
	lectures := []models.Lecture{
		{ID: "l1", CourseID: "c1", Title: "Intro", Position: 0},
		{ID: "l2", CourseID: "c1", Title: "Recursion", Position: 1},
		{ID: "l3", CourseID: "c2", Title: "Vectors", Position: 0},
	}
	topics := []models.Topic{
		{ID: "t1", CourseID: "c1", Name: "Pointers"},
		{ID: "t2", CourseID: "c1", Name: "Loops"},
		{ID: "t3", CourseID: "c2", Name: "Matrices"},
	}
	students := []models.Student{
		{ID: "s1", Name: "Ana Lima", RollNumber: "R-001", CourseIDs: []string{"c1", "c2"}},
		{ID: "s2", Name: "Ben Osei", RollNumber: "R-002", CourseIDs: []string{"c1"}},
		{ID: "s3", Name: "Chen Wu", RollNumber: "R-003", CourseIDs: []string{"c1"}},
	}
	feedback := []models.Feedback{
		{ID: "f1", StudentID: "s1", CourseID: "c1", LectureID: "l1", UnderstandingLevel: models.LevelFully, Comment: "great pace", Tags: []string{"pace"},
			Timestamp: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), TopicRatings: []models.TopicRating{{TopicID: "t1", Rating: 4}}},
		{ID: "f2", StudentID: "s2", CourseID: "c1", LectureID: "l1", UnderstandingLevel: models.LevelConfused, Comment: "lost on pointers", Tags: []string{"pointers"},
			Timestamp: time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC), TopicRatings: []models.TopicRating{{TopicID: "t1", Rating: 1}, {TopicID: "t2", Rating: 2}}},
		{ID: "f3", StudentID: "s1", CourseID: "c1", LectureID: "l2", UnderstandingLevel: models.LevelPartial,
			Timestamp: time.Date(2024, 3, 13, 11, 0, 0, 0, time.UTC)},
		{ID: "f4", StudentID: "s1", CourseID: "c2", LectureID: "l3", UnderstandingLevel: models.LevelFully,
			Timestamp: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)},
	}
	return store.New(courses, lectures, topics, students, feedback)
}

// fakeSnapshots narrows a full snapshot to a scope the way the repositories do.
type fakeSnapshots struct {
	mu          sync.Mutex
	full        *store.Snapshot
	err         error
	scopes      []models.CourseFilter
	invalidated int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{full: fixtureSnapshot()}
}

func (f *fakeSnapshots) Load(ctx context.Context, scope models.CourseFilter) (*store.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, false, f.err
	}
	if scope == (models.CourseFilter{}) {
		return f.full, false, nil
	}

	keep := make(map[string]bool)
	courses := []models.Course{}
	for _, c := range f.full.Courses {
		if scope.ProfessorID != "" && c.ProfessorID != scope.ProfessorID {
			continue
		}
		if scope.StudentID != "" && !contains(c.StudentIDs, scope.StudentID) {
			continue
		}
		keep[c.ID] = true
		courses = append(courses, c)
	}
	lectures := []models.Lecture{}
	for _, l := range f.full.Lectures {
		if keep[l.CourseID] {
			lectures = append(lectures, l)
		}
	}
	topics := []models.Topic{}
	for _, t := range f.full.Topics {
		if keep[t.CourseID] {
			topics = append(topics, t)
		}
	}
	feedback := []models.Feedback{}
	for _, fb := range f.full.Feedback {
		if keep[fb.CourseID] {
			feedback = append(feedback, fb)
		}
	}
	return store.New(courses, lectures, topics, f.full.Students, feedback), false, nil
}

func (f *fakeSnapshots) Invalidate(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// memoryCache is a JSON round-tripping CacheRepository.
type memoryCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = data
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if key == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, prefix)) {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

func newTestCache(repo CacheRepository) *CacheService {
	return NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func errorCode(err error) string {
	return appErrors.CodeOf(err)
}
