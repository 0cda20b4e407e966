package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaind/macad-api/internal/models"
)

func TestListOverlappingTerms(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "roster_deadline", "grade_entry_date", "deleted_at", "created_at", "updated_at"}).
		AddRow("t1", "2025A", start, end, start.AddDate(0, 0, 14), end.AddDate(0, 0, 14), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, start_date, end_date, roster_deadline, grade_entry_date, deleted_at, created_at, updated_at FROM terms WHERE deleted_at IS NULL AND start_date <= $2 AND end_date >= $1")).
		WithArgs(start, end).
		WillReturnRows(rows)

	terms, err := repo.ListOverlapping(context.Background(), start, end, "")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "2025A", terms[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTerm(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectExec("INSERT INTO terms").WillReturnResult(sqlmock.NewResult(1, 1))

	term := &models.Term{
		Name:           "2025B",
		StartDate:      time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC),
		RosterDeadline: time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		GradeEntryDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), term)
	require.NoError(t, err)
	assert.NotEmpty(t, term.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteTerm(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "t1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountTermCourses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE term_id = $1 AND deleted_at IS NULL")).
		WithArgs("t1").
		WillReturnRows(rows)

	count, err := repo.CountCourses(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
