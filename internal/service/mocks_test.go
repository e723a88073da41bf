package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/event"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if u := args.Get(0); u != nil {
		return u.([]*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return m.Called(ctx, userID, passwordHash).Error(0)
}

func (m *mockUserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	return m.Called(ctx, userID, active).Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockUserRepository) VerifyEmail(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *mockUserRepository) SetResetToken(ctx context.Context, userID, selector, secretHash string, expires time.Time) error {
	return m.Called(ctx, userID, selector, secretHash, expires).Error(0)
}

func (m *mockUserRepository) GetByResetSelector(ctx context.Context, selector string) (*domain.User, error) {
	args := m.Called(ctx, selector)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) ResetPassword(ctx context.Context, userID, selector, passwordHash string) (bool, error) {
	args := m.Called(ctx, userID, selector, passwordHash)
	return args.Bool(0), args.Error(1)
}

type mockRoleRepository struct {
	mock.Mock
}

func (m *mockRoleRepository) Create(ctx context.Context, role *domain.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *mockRoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	args := m.Called(ctx, name)
	if r := args.Get(0); r != nil {
		return r.(*domain.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoleRepository) List(ctx context.Context) ([]*domain.Role, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]*domain.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoleRepository) Update(ctx context.Context, role *domain.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *mockRoleRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenHash, expiresAt).Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if t := args.Get(0); t != nil {
		return t.(*domain.RefreshToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockSessionCache struct {
	mock.Mock
}

func (m *mockSessionCache) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	return m.Called(ctx, token, ttl).Error(0)
}

func (m *mockSessionCache) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionCache) CacheSession(ctx context.Context, s *domain.Session, ttl time.Duration) error {
	return m.Called(ctx, s, ttl).Error(0)
}

func (m *mockSessionCache) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionCache) InvalidateSession(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockRoleCache struct {
	mock.Mock
}

func (m *mockRoleCache) CacheRoles(ctx context.Context, roles []*domain.Role, ttl time.Duration) error {
	return m.Called(ctx, roles, ttl).Error(0)
}

func (m *mockRoleCache) GetRoles(ctx context.Context) ([]*domain.Role, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]*domain.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoleCache) CacheRole(ctx context.Context, role *domain.Role, ttl time.Duration) error {
	return m.Called(ctx, role, ttl).Error(0)
}

func (m *mockRoleCache) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoleCache) InvalidateRoles(ctx context.Context, roleIDs ...string) error {
	return m.Called(ctx, roleIDs).Error(0)
}

func (m *mockRoleCache) InvalidateSessions(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) UserRegistered(ctx context.Context, p event.UserRegistered) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPublisher) EmailVerified(ctx context.Context, p event.EmailVerified) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPublisher) PasswordResetIssued(ctx context.Context, p event.PasswordResetIssued) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPublisher) PasswordChanged(ctx context.Context, p event.PasswordChanged) error {
	return m.Called(ctx, p).Error(0)
}
