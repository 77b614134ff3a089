package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/analytics"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/repository"
	appErrors "github.com/noah-isme/lecture-intel-api/pkg/errors"
	"github.com/noah-isme/lecture-intel-api/pkg/events"
)

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, course *models.Course, lectures []models.Lecture, topics []models.Topic) error
	Delete(ctx context.Context, id string) error
}

type studentChecker interface {
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CourseService manages courses and their lecture schedules.
type CourseService struct {
	snapshots snapshotLoader
	repo      courseStore
	students  studentChecker
	users     userLookup
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// CourseServiceParams groups constructor dependencies.
type CourseServiceParams struct {
	Snapshots snapshotLoader
	Repo      courseStore
	Students  studentChecker
	Users     userLookup
	Publisher events.Publisher
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(params CourseServiceParams) *CourseService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CourseService{
		snapshots: params.Snapshots,
		repo:      params.Repo,
		students:  params.Students,
		users:     params.Users,
		publisher: publisher,
		validator: validate,
		logger:    logger,
	}
}

// List returns the courses visible to actor ordered by code.
func (s *CourseService) List(ctx context.Context, actor models.Actor) ([]models.Course, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	return snap.Courses, nil
}

// Get returns a course with its lectures, topics, roster and health.
func (s *CourseService) Get(ctx context.Context, actor models.Actor, id string) (*models.CourseDetail, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return nil, err
	}
	course, err := courseInScope(snap, id)
	if err != nil {
		return nil, err
	}

	detail := &models.CourseDetail{
		Course:   course,
		Lectures: snap.LecturesForCourse(id),
		Topics:   []models.Topic{},
		Students: make([]models.Student, 0, len(course.StudentIDs)),
		Health:   analytics.CourseHealth(snap, id),
	}
	for _, t := range snap.Topics {
		if t.CourseID == id {
			detail.Topics = append(detail.Topics, t)
		}
	}
	for _, sid := range course.StudentIDs {
		if st, ok := snap.Student(sid); ok {
			detail.Students = append(detail.Students, st)
		}
	}
	return detail, nil
}

// Create validates the form and stores the course with its lectures in the
// given order. Professors always own the courses they create; admins must
// name the professor.
func (s *CourseService) Create(ctx context.Context, actor models.Actor, req models.CreateCourseRequest) (*models.Course, error) {
	req = normalizeCourseRequest(req)
	if actor.Role == models.RoleProfessor {
		req.ProfessorID = actor.UserID
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	if err := s.checkProfessor(ctx, req.ProfessorID); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}

	if len(req.StudentIDs) > 0 {
		missing, err := s.students.MissingIDs(ctx, req.StudentIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check students")
		}
		if len(missing) > 0 {
			return nil, appErrors.Validationf("unknown student_ids: %s", strings.Join(missing, ", "))
		}
	}

	course := &models.Course{
		Code:        req.Code,
		Name:        req.Name,
		Department:  req.Department,
		Semester:    req.Semester,
		ProfessorID: req.ProfessorID,
		StudentIDs:  nonNil(req.StudentIDs),
	}
	lectures := make([]models.Lecture, 0, len(req.Lectures))
	for _, title := range req.Lectures {
		lectures = append(lectures, models.Lecture{Title: title})
	}
	topics := make([]models.Topic, 0, len(req.Topics))
	for _, name := range req.Topics {
		topics = append(topics, models.Topic{Name: name})
	}

	if err := s.repo.Create(ctx, course, lectures, topics); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.snapshots.Invalidate(ctx)
	s.publish(ctx, events.NewEvent(events.TypeCourseCreated, course.ID, course))
	return course, nil
}

// Delete removes a course together with its lectures, topics, enrolments and
// feedback. Professors may only delete their own courses.
func (s *CourseService) Delete(ctx context.Context, actor models.Actor, id string) error {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role != models.RoleAdmin && course.ProfessorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another professor")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.snapshots.Invalidate(ctx)
	s.publish(ctx, events.NewEvent(events.TypeCourseDeleted, id, map[string]string{"id": id, "code": course.Code}))
	return nil
}

func (s *CourseService) checkProfessor(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "invalid course payload: professor_id is required")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "invalid course payload: professor_id does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if user.Role != models.RoleProfessor {
		return appErrors.Clone(appErrors.ErrValidation, "invalid course payload: professor_id is not a professor")
	}
	return nil
}

func (s *CourseService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish course event", zap.String("type", event.Type), zap.String("key", event.Key), zap.Error(err))
	}
}

// normalizeCourseRequest trims every text field and drops blank lecture and
// topic lines, mirroring a multi-line text input.
func normalizeCourseRequest(req models.CreateCourseRequest) models.CreateCourseRequest {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.Department = strings.TrimSpace(req.Department)
	req.Semester = strings.TrimSpace(req.Semester)
	req.Lectures = compactLines(req.Lectures)
	req.Topics = compactLines(req.Topics)
	return req
}

func compactLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
