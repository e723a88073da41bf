package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	errs "github.com/identware/identity-service/pkg/errors"
	"github.com/identware/identity-service/pkg/logger"
)

type userFixture struct {
	users    *mockUserRepository
	ledger   *mockRefreshTokenRepository
	sessions *mockSessionCache
	svc      *UserService
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		users:    &mockUserRepository{},
		ledger:   &mockRefreshTokenRepository{},
		sessions: &mockSessionCache{},
	}
	f.svc = NewUserService(f.users, f.ledger, f.sessions,
		logger.NewWithWriter("test", "error", testWriter{t}))
	return f
}

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user := verifiedUser(t)

	f.users.On("GetByID", ctx, "u-1").Return(user, nil)
	f.users.On("UpdateProfile", ctx, user).Return(nil)
	f.sessions.On("InvalidateSession", ctx, "u-1").Return(nil)

	got, err := f.svc.UpdateProfile(ctx, "u-1", UpdateProfileInput{
		FirstName: strPtr("  Augusta "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName, "unset fields stay untouched")
	f.sessions.AssertCalled(t, "InvalidateSession", ctx, "u-1")
}

func TestUpdateProfileEmptyName(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.users.On("GetByID", ctx, "u-1").Return(verifiedUser(t), nil)

	_, err := f.svc.UpdateProfile(ctx, "u-1", UpdateProfileInput{
		FirstName: strPtr("   "),
	})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	f.users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestDeactivateRevokesEverything(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.users.On("SetActive", ctx, "u-1", false).Return(nil)
	f.ledger.On("RevokeAllForUser", ctx, "u-1").Return(int64(2), nil)
	f.sessions.On("InvalidateSession", ctx, "u-1").Return(nil)

	require.NoError(t, f.svc.Deactivate(ctx, "u-1"))
	f.ledger.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestDeleteUnknownUser(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.ledger.On("RevokeAllForUser", ctx, "ghost").Return(int64(0), nil)
	f.sessions.On("InvalidateSession", ctx, "ghost").Return(nil)
	f.users.On("Delete", ctx, "ghost").Return(errs.NotFound("user", "ghost"))

	err := f.svc.Delete(ctx, "ghost")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
