package service

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/pkg/storage"
)

func strPtr(s string) *string {
	return &s
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	snaps := newFakeSnapshots()
	feedback := NewFeedbackService(FeedbackServiceParams{Snapshots: snaps, Repo: newFakeFeedbackStore(), Logger: zap.NewNop()})
	feedback.now = func() time.Time { return fixtureNow }

	svc := NewExportService(ExportServiceParams{
		Feedback:  feedback,
		Snapshots: snaps,
		Users:     testUsers(),
		Storage:   files,
		Signer:    storage.NewSignedURLSigner("secret", time.Hour),
		Logger:    zap.NewNop(),
		Config:    ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour},
	})
	svc.now = func() time.Time { return fixtureNow }
	return svc, files
}

func readExport(t *testing.T, files *storage.LocalStorage, relPath string) []byte {
	t.Helper()
	f, err := files.Open(relPath)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestExportServiceGenerateFeedbackCSV(t *testing.T) {
	svc, files := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeFeedback,
		Params:    models.ReportJobParams{CourseID: strPtr("c1"), Format: models.ReportFormatCSV, Filter: models.FilterUnresolved},
		CreatedBy: "prof-1",
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "feedback_c1_20240315_120000.csv", result.RelativePath)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasSuffix(result.URL, result.Token))

	records, err := csv.NewReader(strings.NewReader(string(readExport(t, files, result.RelativePath)))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "f2", records[1][0])
	assert.Equal(t, "lost on pointers", records[1][5])

	token, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", token.ReportID)
	assert.Equal(t, result.RelativePath, token.Path)
}

func TestExportServiceGenerateCourseHealthXLSX(t *testing.T) {
	svc, files := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-2",
		Type:      models.ReportTypeCourseHealth,
		Params:    models.ReportJobParams{Format: models.ReportFormatXLSX},
		CreatedBy: "admin-1",
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatXLSX, result.Format)

	book, err := excelize.OpenReader(strings.NewReader(string(readExport(t, files, result.RelativePath))))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Course", rows[1][0])
	assert.Equal(t, []string{"CS101", "Intro to Programming", "60", "3", "3", "1", "1", "1", "3.0"}, rows[2])
	assert.Equal(t, "MA201", rows[3][0])
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, files := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-3",
		Type:      models.ReportTypeFeedback,
		Params:    models.ReportJobParams{Format: models.ReportFormatPDF},
		CreatedBy: "user-s1",
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(readExport(t, files, result.RelativePath)), "%PDF"))
}

func TestExportServiceRejectsUnknownOwnerAndCourse(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Generate(context.Background(), &models.ReportJob{
		ID: "job-4", Type: models.ReportTypeFeedback,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV}, CreatedBy: "ghost",
	})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID: "job-5", Type: models.ReportTypeCourseHealth,
		Params: models.ReportJobParams{CourseID: strPtr("c2"), Format: models.ReportFormatCSV}, CreatedBy: "prof-1",
	})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID: "job-6", Type: models.ReportTypeFeedback,
		Params: models.ReportJobParams{Format: "docx"}, CreatedBy: "prof-1",
	})
	require.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
