package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/identware/identity-service/internal/cache"
	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/repository"
	errs "github.com/identware/identity-service/pkg/errors"
	"github.com/identware/identity-service/pkg/logger"
)

// RoleCache is the slice of the cache client the role service uses.
type RoleCache interface {
	CacheRoles(ctx context.Context, roles []*domain.Role, ttl time.Duration) error
	GetRoles(ctx context.Context) ([]*domain.Role, error)
	CacheRole(ctx context.Context, role *domain.Role, ttl time.Duration) error
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	InvalidateRoles(ctx context.Context, roleIDs ...string) error
	InvalidateSessions(ctx context.Context) error
}

// RoleService implements role administration with read-through caching.
type RoleService struct {
	roles  repository.RoleRepository
	rcache RoleCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewRoleService wires the role service. ttl bounds how long role reads may
// be served from redis.
func NewRoleService(roles repository.RoleRepository, rcache RoleCache, ttl time.Duration, log *slog.Logger) *RoleService {
	return &RoleService{roles: roles, rcache: rcache, ttl: ttl, logger: log}
}

// RoleInput is the payload for Create and Update.
type RoleInput struct {
	Name        string
	Permissions domain.Permissions
}

func (in *RoleInput) validate() error {
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	if in.Name == "" {
		return errs.InvalidInput("role name must not be empty")
	}
	if err := in.Permissions.Validate(); err != nil {
		return errs.InvalidInput(err.Error())
	}
	return nil
}

// Create validates and stores a new role.
func (s *RoleService) Create(ctx context.Context, in RoleInput) (*domain.Role, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	role := &domain.Role{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Permissions: in.Permissions,
	}
	if role.Permissions == nil {
		role.Permissions = domain.Permissions{}
	}

	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}
	s.dropRoleCaches(ctx, role.ID)
	return role, nil
}

// Get fetches a role, redis first.
func (s *RoleService) Get(ctx context.Context, id string) (*domain.Role, error) {
	if role, err := s.rcache.GetRole(ctx, id); err == nil {
		return role, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.FromContext(ctx).Warn("role cache read failed",
			slog.String("error", err.Error()),
		)
	}

	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.rcache.CacheRole(ctx, role, s.ttl); err != nil {
		logger.FromContext(ctx).Warn("cache role",
			slog.String("error", err.Error()),
		)
	}
	return role, nil
}

// List returns all roles, redis first.
func (s *RoleService) List(ctx context.Context) ([]*domain.Role, error) {
	if roles, err := s.rcache.GetRoles(ctx); err == nil {
		return roles, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.FromContext(ctx).Warn("role list cache read failed",
			slog.String("error", err.Error()),
		)
	}

	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.rcache.CacheRoles(ctx, roles, s.ttl); err != nil {
		logger.FromContext(ctx).Warn("cache role list",
			slog.String("error", err.Error()),
		)
	}
	return roles, nil
}

// Update validates and stores changed grants. Session snapshots are swept so
// permission changes take effect at the next authenticated request rather
// than after the snapshot TTL.
func (s *RoleService) Update(ctx context.Context, id string, in RoleInput) (*domain.Role, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	role.Name = in.Name
	role.Permissions = in.Permissions
	if role.Permissions == nil {
		role.Permissions = domain.Permissions{}
	}

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}

	s.dropRoleCaches(ctx, id)
	if err := s.rcache.InvalidateSessions(ctx); err != nil {
		logger.FromContext(ctx).Error("sweep session snapshots after role update",
			slog.String("role_id", id),
			slog.String("error", err.Error()),
		)
	}
	return role, nil
}

// Delete removes an unassigned role.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	if err := s.roles.Delete(ctx, id); err != nil {
		return err
	}
	s.dropRoleCaches(ctx, id)
	return nil
}

func (s *RoleService) dropRoleCaches(ctx context.Context, roleIDs ...string) {
	if err := s.rcache.InvalidateRoles(ctx, roleIDs...); err != nil {
		logger.FromContext(ctx).Warn("invalidate role caches",
			slog.String("error", err.Error()),
		)
	}
}
