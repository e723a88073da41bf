package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/identware/identity-service/internal/cache"
	"github.com/identware/identity-service/internal/domain"
	errs "github.com/identware/identity-service/pkg/errors"
	"github.com/identware/identity-service/pkg/logger"
)

type roleFixture struct {
	repo   *mockRoleRepository
	rcache *mockRoleCache
	svc    *RoleService
}

func newRoleFixture(t *testing.T) *roleFixture {
	t.Helper()
	f := &roleFixture{
		repo:   &mockRoleRepository{},
		rcache: &mockRoleCache{},
	}
	f.svc = NewRoleService(f.repo, f.rcache, time.Hour,
		logger.NewWithWriter("test", "error", testWriter{t}))
	return f
}

func TestRoleCreate(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.MatchedBy(func(r *domain.Role) bool {
		return r.Name == "moderator" && r.ID != ""
	})).Return(nil)
	f.rcache.On("InvalidateRoles", ctx, mock.Anything).Return(nil)

	role, err := f.svc.Create(ctx, RoleInput{
		Name:        " Moderator ",
		Permissions: domain.Permissions{"users": {domain.ActionRead}},
	})
	require.NoError(t, err)
	assert.Equal(t, "moderator", role.Name, "role names are lowercased")
	f.repo.AssertExpectations(t)
}

func TestRoleCreateInvalidPermissions(t *testing.T) {
	f := newRoleFixture(t)

	_, err := f.svc.Create(context.Background(), RoleInput{
		Name:        "moderator",
		Permissions: domain.Permissions{"users": {"fly"}},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRoleGetCacheHit(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	f.rcache.On("GetRole", ctx, "r-1").Return(&domain.Role{ID: "r-1", Name: "admin"}, nil)

	role, err := f.svc.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", role.Name)
	f.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRoleGetCacheMiss(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	f.rcache.On("GetRole", ctx, "r-1").Return(nil, cache.ErrMiss)
	f.repo.On("GetByID", ctx, "r-1").Return(&domain.Role{ID: "r-1", Name: "admin"}, nil)
	f.rcache.On("CacheRole", ctx, mock.Anything, time.Hour).Return(nil)

	role, err := f.svc.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", role.Name)
	f.rcache.AssertCalled(t, "CacheRole", ctx, mock.Anything, time.Hour)
}

func TestRoleListCacheMiss(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	f.rcache.On("GetRoles", ctx).Return(nil, cache.ErrMiss)
	f.repo.On("List", ctx).Return([]*domain.Role{{ID: "r-1"}, {ID: "r-2"}}, nil)
	f.rcache.On("CacheRoles", ctx, mock.Anything, time.Hour).Return(nil)

	roles, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}

func TestRoleUpdateSweepsSessions(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, "r-1").Return(&domain.Role{ID: "r-1", Name: "user"}, nil)
	f.repo.On("Update", ctx, mock.MatchedBy(func(r *domain.Role) bool {
		return r.Permissions.Can("users", domain.ActionDelete)
	})).Return(nil)
	f.rcache.On("InvalidateRoles", ctx, mock.Anything).Return(nil)
	f.rcache.On("InvalidateSessions", ctx).Return(nil)

	_, err := f.svc.Update(ctx, "r-1", RoleInput{
		Name:        "user",
		Permissions: domain.Permissions{"users": {domain.ActionDelete}},
	})
	require.NoError(t, err)
	f.rcache.AssertCalled(t, "InvalidateSessions", ctx)
}

func TestRoleDelete(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	f.repo.On("Delete", ctx, "r-1").Return(nil)
	f.rcache.On("InvalidateRoles", ctx, mock.Anything).Return(nil)

	require.NoError(t, f.svc.Delete(ctx, "r-1"))
}
