// Package repository defines the persistence interfaces implemented by the
// postgres subpackage and mocked in service tests.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/identware/identity-service/internal/domain"
)

// DB is the subset of pgxpool.Pool the repositories use. pgxmock satisfies
// it too, so repository tests run against a mock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepository persists identities and their verification and reset state.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetActive(ctx context.Context, userID string, active bool) error
	Delete(ctx context.Context, userID string) error

	// VerifyEmail atomically consumes an unexpired verification token and
	// marks the identity verified. Returns the user ID, or ErrNotFound when
	// the token is unknown, expired, or already consumed.
	VerifyEmail(ctx context.Context, token string) (string, error)

	SetResetToken(ctx context.Context, userID, selector, secretHash string, expires time.Time) error
	GetByResetSelector(ctx context.Context, selector string) (*domain.User, error)

	// ResetPassword atomically sets the new password hash and clears the
	// reset token, guarded on the selector still being current. Returns
	// false when another request consumed the token first.
	ResetPassword(ctx context.Context, userID, selector, passwordHash string) (bool, error)
}

// RoleRepository persists roles and their permission grants.
type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, id string) error
}

// RefreshTokenRepository is the rotation ledger. Tokens are stored only as
// SHA-256 hashes; revoked rows are kept so reuse surfaces as replay.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks a single row revoked. Returns false when the row was
	// already revoked or never existed, which callers treat as replay.
	Revoke(ctx context.Context, tokenHash string) (bool, error)

	// RevokeAllForUser invalidates the identity's entire chain. Returns the
	// number of rows revoked.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired reclaims rows whose expiry passed before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
