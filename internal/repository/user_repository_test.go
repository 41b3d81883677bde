package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulme/api/internal/models"
)

func newUserMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestUserFindByIDFound(t *testing.T) {
	repo, mock := newUserMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "email", "display_name", "locale", "last_login_at", "created_at", "updated_at"}).
		AddRow("user-1", "user@example.com", "Ada", "en-US", nil, now, now)
	mock.ExpectQuery("SELECT id, email").
		WithArgs("user-1").
		WillReturnRows(rows)

	u, err := repo.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user@example.com", u.Email)
	assert.Equal(t, "Ada", u.DisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByEmailMissing(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectQuery("SELECT id, email").
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDefaultsLocale(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("user-1", "user@example.com", "", "en-US").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.User{ID: "user-1", Email: "user@example.com"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
