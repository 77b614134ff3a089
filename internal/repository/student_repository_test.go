package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentListByCourses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT s.id, s.name, s.roll_number FROM students s")).
		WithArgs(pq.Array([]string{"c1"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "roll_number"}).AddRow("s1", "Asha", "R1"))

	students, err := repo.ListByCourses(context.Background(), []string{"c1"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "R1", students[0].RollNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentMissingIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE id = ANY($1)")).
		WithArgs(pq.Array([]string{"s1", "s9", "s2"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s2").AddRow("s1"))

	missing, err := repo.MissingIDs(context.Background(), []string{"s1", "s9", "s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s9"}, missing)

	none, err := repo.MissingIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLectureRepositoryScopes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, title, position, scheduled_at FROM lectures WHERE course_id = ANY($1) ORDER BY course_id, position")).
		WithArgs(pq.Array([]string{"c1"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "title", "position", "scheduled_at"}).AddRow("l1", "c1", "Intro", 0, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, name FROM topics ORDER BY course_id, name")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "name"}).AddRow("t1", "c1", "Pointers"))

	lectures, err := repo.ListByCourses(context.Background(), []string{"c1"})
	require.NoError(t, err)
	require.Len(t, lectures, 1)
	assert.Nil(t, lectures[0].ScheduledAt)

	topics, err := repo.TopicsByCourses(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Pointers", topics[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
