package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/repository"
	errs "github.com/identware/identity-service/pkg/errors"
	"github.com/identware/identity-service/pkg/logger"
)

// UserService implements profile and administration operations.
type UserService struct {
	users    repository.UserRepository
	ledger   repository.RefreshTokenRepository
	sessions SessionCache
	logger   *slog.Logger
}

// NewUserService wires the user service.
func NewUserService(
	users repository.UserRepository,
	ledger repository.RefreshTokenRepository,
	sessions SessionCache,
	log *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		ledger:   ledger,
		sessions: sessions,
		logger:   log,
	}
}

// Get fetches an identity by ID.
func (s *UserService) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// List returns all identities.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// UpdateProfileInput carries optional profile changes. Nil fields are left
// untouched.
type UpdateProfileInput struct {
	FirstName    *string
	LastName     *string
	ProfileImage *string
}

// UpdateProfile applies profile changes and drops the session snapshot so
// the next request sees them.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		name := strings.TrimSpace(*in.FirstName)
		if name == "" {
			return nil, errs.InvalidInput("first name must not be empty")
		}
		user.FirstName = name
	}
	if in.LastName != nil {
		name := strings.TrimSpace(*in.LastName)
		if name == "" {
			return nil, errs.InvalidInput("last name must not be empty")
		}
		user.LastName = name
	}
	if in.ProfileImage != nil {
		user.ProfileImage = strings.TrimSpace(*in.ProfileImage)
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	if err := s.sessions.InvalidateSession(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn("invalidate session after profile update",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return user, nil
}

// Deactivate disables an identity and revokes everything it holds. Existing
// access tokens die at the gate because the snapshot is dropped and the
// store says inactive.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		return err
	}
	s.teardown(ctx, userID)
	return nil
}

// Delete removes an identity and revokes everything it holds.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	// Revoke before delete; the ledger rows cascade away with the user.
	s.teardown(ctx, userID)
	return s.users.Delete(ctx, userID)
}

func (s *UserService) teardown(ctx context.Context, userID string) {
	if _, err := s.ledger.RevokeAllForUser(ctx, userID); err != nil &&
		!errors.Is(err, errs.ErrNotFound) {
		logger.FromContext(ctx).Error("revoke refresh chain",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.sessions.InvalidateSession(ctx, userID); err != nil {
		logger.FromContext(ctx).Error("invalidate session",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
