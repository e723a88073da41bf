package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identware/identity-service/internal/domain"
	errs "github.com/identware/identity-service/pkg/errors"
)

func userRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name",
		"profile_image", "role_id", "is_active", "email_verified",
		"verification_token", "verification_expires",
		"reset_selector", "reset_secret_hash", "reset_expires",
		"provider", "oauth_id", "created_at", "updated_at",
		"r_id", "r_name", "r_permissions", "r_created_at", "r_updated_at",
	})
}

func addUserRow(rows *pgxmock.Rows, id, email string) *pgxmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id, email, "$2a$12$hash", "Ada", "Lovelace",
		"", "r-1", true, true,
		"", (*time.Time)(nil),
		"", "", (*time.Time)(nil),
		domain.ProviderLocal, "", now, now,
		"r-1", "user", domain.Permissions{"users": {domain.ActionRead}}, now, now,
	)
}

func TestUserGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM users u").
		WithArgs("ada@example.com").
		WillReturnRows(addUserRow(userRows(), "u-1", "ada@example.com"))

	user, err := repo.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	require.NotNil(t, user.Role)
	assert.Equal(t, "user", user.Role.Name)
	assert.True(t, user.Role.Permissions.Can("users", domain.ActionRead))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmailNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM users u").
		WithArgs("ghost@example.com").
		WillReturnRows(userRows())

	_, err = repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err = repo.Create(context.Background(), &domain.User{
		ID:    "u-1",
		Email: "ada@example.com",
	})
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestUserVerifyEmailConsumesToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery("UPDATE users").
		WithArgs("verify-tok").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("u-1"))

	userID, err := repo.VerifyEmail(context.Background(), "verify-tok")
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
}

func TestUserVerifyEmailExpiredOrUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery("UPDATE users").
		WithArgs("stale-tok").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = repo.VerifyEmail(context.Background(), "stale-tok")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserResetPasswordGuardedOnSelector(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec("UPDATE users").
		WithArgs("u-1", "selector", "$2a$12$newhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.ResetPassword(context.Background(), "u-1", "selector", "$2a$12$newhash")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserResetPasswordConsumedConcurrently(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec("UPDATE users").
		WithArgs("u-1", "selector", "$2a$12$newhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.ResetPassword(context.Background(), "u-1", "selector", "$2a$12$newhash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserUpdatePasswordNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec("UPDATE users").
		WithArgs("ghost", "$2a$12$hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdatePassword(context.Background(), "ghost", "$2a$12$hash")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	rows := addUserRow(userRows(), "u-1", "ada@example.com")
	rows = addUserRow(rows, "u-2", "grace@example.com")

	mock.ExpectQuery("SELECT (.+) FROM users u").
		WillReturnRows(rows)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "grace@example.com", users[1].Email)
}

func TestUserListQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM users u").
		WillReturnError(errors.New("connection reset"))

	_, err = repo.List(context.Background())
	assert.Error(t, err)
}
