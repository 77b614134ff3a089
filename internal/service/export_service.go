package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/analytics"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/pkg/export"
	"github.com/noah-isme/lecture-intel-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type feedbackViewSource interface {
	Views(ctx context.Context, actor models.Actor, q models.FeedbackQuery) ([]analytics.FeedbackView, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	feedback  feedbackViewSource
	snapshots snapshotLoader
	users     userLookup
	storage   fileStorage
	renderers map[models.ReportFormat]renderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Feedback  feedbackViewSource
	Snapshots snapshotLoader
	Users     userLookup
	Storage   fileStorage
	Signer    *storage.SignedURLSigner
	Logger    *zap.Logger
	Config    ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		feedback:  params.Feedback,
		snapshots: params.Snapshots,
		users:     params.Users,
		storage:   params.Storage,
		renderers: map[models.ReportFormat]renderer{
			models.ReportFormatCSV:  export.NewCSVExporter(),
			models.ReportFormatPDF:  export.NewPDFExporter(),
			models.ReportFormatXLSX: export.NewXLSXExporter(),
		},
		signer: params.Signer,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Generate builds the dataset for job, renders it in the requested format and
// stores the file behind a signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	render, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	actor, err := s.actorFor(ctx, job.CreatedBy)
	if err != nil {
		return nil, err
	}
	dataset, err := s.buildDataset(ctx, actor, job)
	if err != nil {
		return nil, err
	}

	payload, err := render.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Params.Format, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.Token, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// actorFor rebuilds the scope of the user who requested the report.
func (s *ExportService) actorFor(ctx context.Context, userID string) (models.Actor, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Actor{}, fmt.Errorf("report owner %s no longer exists", userID)
		}
		return models.Actor{}, err
	}
	actor := models.Actor{UserID: user.ID, Role: user.Role}
	if user.StudentID != nil {
		actor.StudentID = *user.StudentID
	}
	return actor, nil
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.CourseID != nil {
		scope = sanitizeFilename(*job.Params.CourseID)
	}
	return fmt.Sprintf("%s_%s_%s%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format.Extension())
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, actor models.Actor, job *models.ReportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeFeedback:
		return s.buildFeedbackDataset(ctx, actor, job.Params)
	case models.ReportTypeCourseHealth:
		return s.buildHealthDataset(ctx, actor, job.Params)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildFeedbackDataset(ctx context.Context, actor models.Actor, params models.ReportJobParams) (export.Dataset, error) {
	q := models.FeedbackQuery{
		CourseID: deref(params.CourseID),
		Search:   params.Search,
		Filter:   params.Filter,
		Category: params.Category,
	}
	views, err := s.feedback.Views(ctx, actor, q)
	if err != nil {
		return export.Dataset{}, err
	}
	dataset := analytics.CSVDataset(views)
	dataset.Title = "Feedback Report"
	if len(views) > 0 && q.CourseID != "" {
		dataset.Title = fmt.Sprintf("Feedback Report %s", views[0].CourseCode)
	}
	return dataset, nil
}

func (s *ExportService) buildHealthDataset(ctx context.Context, actor models.Actor, params models.ReportJobParams) (export.Dataset, error) {
	snap, err := loadFor(ctx, s.snapshots, actor)
	if err != nil {
		return export.Dataset{}, err
	}
	courses := snap.Courses
	if params.CourseID != nil {
		course, err := courseInScope(snap, *params.CourseID)
		if err != nil {
			return export.Dataset{}, err
		}
		courses = []models.Course{course}
	}

	now := s.now()
	rows := make([]map[string]string, 0, len(courses))
	for _, course := range courses {
		stats := analytics.Stats(snap.FeedbackForCourse(course.ID), now)
		rows = append(rows, map[string]string{
			"Course":         course.Code,
			"Name":           course.Name,
			"Health (%)":     strconv.Itoa(stats.Health),
			"Feedback":       strconv.Itoa(stats.Total),
			"Students":       strconv.Itoa(len(course.StudentIDs)),
			"Fully":          strconv.Itoa(stats.Fully),
			"Partial":        strconv.Itoa(stats.Partial),
			"Confused":       strconv.Itoa(stats.Confused),
			"Average Rating": strconv.FormatFloat(stats.AverageRating, 'f', 1, 64),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Course Health Report %s", now.UTC().Format("2006-01-02")),
		Headers: []string{"Course", "Name", "Health (%)", "Feedback", "Students", "Fully", "Partial", "Confused", "Average Rating"},
		Rows:    rows,
	}, nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
