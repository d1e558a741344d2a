package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUserRepositorySetPreferenceUpserts(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_preferences (user_id, name, value) VALUES ($1, $2, $3)")).
		WithArgs("u1", "badges_on_profile", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetPreference(context.Background(), "u1", "badges_on_profile", "1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListPreferences(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "value"}).
		AddRow(int64(1), "u1", "badges_on_profile", "1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, value FROM user_preferences WHERE user_id = $1 ORDER BY name")).
		WithArgs("u1").
		WillReturnRows(rows)

	prefs, err := repo.ListPreferences(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	require.Equal(t, "badges_on_profile", prefs[0].Name)
	require.Equal(t, "1", prefs[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}
