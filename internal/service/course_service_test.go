package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/repository"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
	"github.com/noah-isme/lecture-intel-api/pkg/events"
)

type fakeCourseStore struct {
	courses   map[string]*models.Course
	codes     map[string]bool
	createErr error
	lectures  []models.Lecture
	topics    []models.Topic
	deleted   []string
}

func newFakeCourseStore() *fakeCourseStore {
	return &fakeCourseStore{
		courses: map[string]*models.Course{
			"c1": {ID: "c1", Code: "CS101", ProfessorID: "prof-1"},
		},
		codes: map[string]bool{"CS101": true},
	}
}

func (f *fakeCourseStore) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeCourseStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return f.codes[code], nil
}

func (f *fakeCourseStore) Create(ctx context.Context, course *models.Course, lectures []models.Lecture, topics []models.Topic) error {
	if f.createErr != nil {
		return f.createErr
	}
	course.ID = "c-new"
	f.courses[course.ID] = course
	f.lectures = lectures
	f.topics = topics
	return nil
}

func (f *fakeCourseStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.courses, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeStudentChecker struct {
	known map[string]bool
}

func (f fakeStudentChecker) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if !f.known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type fakeUserLookup map[string]*models.User

func (f fakeUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func testUsers() fakeUserLookup {
	s1 := "s1"
	return fakeUserLookup{
		"prof-1":  {ID: "prof-1", Role: models.RoleProfessor, Active: true},
		"prof-2":  {ID: "prof-2", Role: models.RoleProfessor, Active: true},
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin, Active: true},
		"user-s1": {ID: "user-s1", Role: models.RoleStudent, StudentID: &s1, Active: true},
	}
}

type courseFixture struct {
	svc       *CourseService
	snapshots *fakeSnapshots
	repo      *fakeCourseStore
	publisher *recordingPublisher
}

func newCourseServiceForTest(t *testing.T) courseFixture {
	t.Helper()
	fx := courseFixture{
		snapshots: newFakeSnapshots(),
		repo:      newFakeCourseStore(),
		publisher: &recordingPublisher{},
	}
	fx.svc = NewCourseService(CourseServiceParams{
		Snapshots: fx.snapshots,
		Repo:      fx.repo,
		Students:  fakeStudentChecker{known: map[string]bool{"s1": true, "s2": true}},
		Users:     testUsers(),
		Publisher: fx.publisher,
		Logger:    zap.NewNop(),
	})
	return fx
}

func validCourseRequest() models.CreateCourseRequest {
	return models.CreateCourseRequest{
		Code:       " CS202 ",
		Name:       "Data Structures",
		Department: "Computer Science",
		Semester:   "Fall 2024",
		StudentIDs: []string{"s2", "s1"},
		Lectures:   []string{"Arrays", "", "  Linked Lists  ", "Trees"},
		Topics:     []string{"Big O", " "},
	}
}

func TestCourseServiceListAndGet(t *testing.T) {
	fx := newCourseServiceForTest(t)

	courses, err := fx.svc.List(context.Background(), studentActor)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	detail, err := fx.svc.Get(context.Background(), professorActor, "c1")
	require.NoError(t, err)
	assert.Equal(t, "CS101", detail.Code)
	assert.Equal(t, 60, detail.Health)
	require.Len(t, detail.Lectures, 2)
	assert.Equal(t, "Recursion", detail.Lectures[1].Title)
	assert.Len(t, detail.Topics, 2)
	assert.Len(t, detail.Students, 3)

	_, err = fx.svc.Get(context.Background(), professorActor, "c2")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestCourseServiceCreateByProfessor(t *testing.T) {
	fx := newCourseServiceForTest(t)
	req := validCourseRequest()
	req.ProfessorID = "prof-2"

	course, err := fx.svc.Create(context.Background(), professorActor, req)
	require.NoError(t, err)
	assert.Equal(t, "c-new", course.ID)
	assert.Equal(t, "CS202", course.Code)
	assert.Equal(t, "prof-1", course.ProfessorID)
	assert.Equal(t, []string{"s2", "s1"}, course.StudentIDs)

	require.Len(t, fx.repo.lectures, 3)
	assert.Equal(t, "Linked Lists", fx.repo.lectures[1].Title)
	require.Len(t, fx.repo.topics, 1)
	assert.Equal(t, 1, fx.snapshots.invalidated)
	assert.Equal(t, []string{events.TypeCourseCreated}, fx.publisher.types())
}

func TestCourseServiceCreateValidation(t *testing.T) {
	fx := newCourseServiceForTest(t)

	_, err := fx.svc.Create(context.Background(), professorActor, models.CreateCourseRequest{Name: "x", Lectures: []string{" "}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
	assert.Contains(t, err.Error(), "code is required")
	assert.Contains(t, err.Error(), "lectures must be at least 1")

	req := validCourseRequest()
	_, err = fx.svc.Create(context.Background(), adminActor, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "professor_id is required")

	req.ProfessorID = "user-s1"
	_, err = fx.svc.Create(context.Background(), adminActor, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "professor_id is not a professor")

	req = validCourseRequest()
	req.StudentIDs = []string{"s1", "s9"}
	_, err = fx.svc.Create(context.Background(), professorActor, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown student_ids: s9")

	req.StudentIDs = []string{"s1", "s1"}
	_, err = fx.svc.Create(context.Background(), professorActor, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student_ids must not contain duplicates")

	assert.Zero(t, fx.snapshots.invalidated)
	assert.Empty(t, fx.publisher.types())
}

func TestCourseServiceCreateConflicts(t *testing.T) {
	fx := newCourseServiceForTest(t)
	req := validCourseRequest()
	req.Code = "CS101"

	_, err := fx.svc.Create(context.Background(), professorActor, req)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))

	fx.repo.createErr = repository.ErrDuplicate
	_, err = fx.svc.Create(context.Background(), professorActor, validCourseRequest())
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestCourseServiceDelete(t *testing.T) {
	fx := newCourseServiceForTest(t)

	err := fx.svc.Delete(context.Background(), otherProfessor, "c1")
	assert.Equal(t, appErrors.ErrForbidden.Code, errorCode(err))

	err = fx.svc.Delete(context.Background(), professorActor, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))

	require.NoError(t, fx.svc.Delete(context.Background(), professorActor, "c1"))
	assert.Equal(t, []string{"c1"}, fx.repo.deleted)
	assert.Equal(t, 1, fx.snapshots.invalidated)
	assert.Equal(t, []string{events.TypeCourseDeleted}, fx.publisher.types())
}
