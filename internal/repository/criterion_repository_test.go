package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

func newCriterionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCriterionRepositoryCreateInsertsItemsInOneTx(t *testing.T) {
	db, mock, cleanup := newCriterionRepoMock(t)
	defer cleanup()
	repo := NewCriterionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO criteria (badge_id, oauth2_id, completion_method, addendum, use_addendum, created_at)")).
		WithArgs("b1", int64(1), models.CompletionAll, "", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO criterion_items (criterion_id, criteria_type, course_id, min_grade, completed_by, profile_field, profile_value)")).
		WithArgs(int64(3), models.ItemKindCourseCompletion, "c1", nil, nil, "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	criterion := &models.Criterion{
		BadgeID:      "b1",
		ConnectionID: 1,
		Items: []models.CriterionItem{
			{Kind: models.ItemKindCourseCompletion, CourseID: "c1"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), criterion))
	require.Equal(t, int64(3), criterion.ID)
	require.Equal(t, models.CompletionAll, criterion.CompletionMethod)
	require.Equal(t, int64(11), criterion.Items[0].ID)
	require.Equal(t, int64(3), criterion.Items[0].CriterionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriterionRepositoryGetByIDLoadsItems(t *testing.T) {
	db, mock, cleanup := newCriterionRepoMock(t)
	defer cleanup()
	repo := NewCriterionRepository(db)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, badge_id, oauth2_id, completion_method, addendum, use_addendum, created_at FROM criteria WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "badge_id", "oauth2_id", "completion_method", "addendum", "use_addendum", "created_at"}).
			AddRow(int64(3), "b1", int64(1), int(models.CompletionAny), "extra work", true, created))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, criterion_id, criteria_type, course_id, min_grade, completed_by, profile_field, profile_value FROM criterion_items WHERE criterion_id = $1 ORDER BY id")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "criterion_id", "criteria_type", "course_id", "min_grade", "completed_by", "profile_field", "profile_value"}).
			AddRow(int64(11), int64(3), "course", "c1", 75.0, nil, "", "").
			AddRow(int64(12), int64(3), "profile", "", nil, nil, "email", "a@example.org"))

	criterion, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, models.CompletionAny, criterion.CompletionMethod)
	require.Len(t, criterion.Items, 2)
	require.Equal(t, models.ItemKindCourseCompletion, criterion.Items[0].Kind)
	require.True(t, criterion.Items[0].HasGrade())
	require.Equal(t, "email", criterion.Items[1].ProfileField)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriterionRepositoryIsMet(t *testing.T) {
	db, mock, cleanup := newCriterionRepoMock(t)
	defer cleanup()
	repo := NewCriterionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM criterion_met WHERE criterion_id = $1 AND user_id = $2")).
		WithArgs(int64(3), "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	met, err := repo.IsMet(context.Background(), 3, "u1")
	require.NoError(t, err)
	require.True(t, met)

	// No guard row means not met, not an error.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM criterion_met WHERE criterion_id = $1 AND user_id = $2")).
		WithArgs(int64(3), "u2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	met, err = repo.IsMet(context.Background(), 3, "u2")
	require.NoError(t, err)
	require.False(t, met)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriterionRepositoryMarkMetIsIdempotent(t *testing.T) {
	db, mock, cleanup := newCriterionRepoMock(t)
	defer cleanup()
	repo := NewCriterionRepository(db)

	metAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO criterion_met (criterion_id, user_id, met_at)")).
		WithArgs(int64(3), "u1", metAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Conflict on a duplicate insert affects zero rows and still succeeds.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO criterion_met (criterion_id, user_id, met_at)")).
		WithArgs(int64(3), "u1", metAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkMet(context.Background(), 3, "u1", metAt))
	require.NoError(t, repo.MarkMet(context.Background(), 3, "u1", metAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriterionRepositoryDeleteRemovesDependentRows(t *testing.T) {
	db, mock, cleanup := newCriterionRepoMock(t)
	defer cleanup()
	repo := NewCriterionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM criterion_met WHERE criterion_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM criterion_items WHERE criterion_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM criteria WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriterionRepositoryHasAnyMet(t *testing.T) {
	db, mock, cleanup := newCriterionRepoMock(t)
	defer cleanup()
	repo := NewCriterionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM criterion_met WHERE criterion_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	locked, err := repo.HasAnyMet(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, locked)
	require.NoError(t, mock.ExpectationsWereMet())
}
