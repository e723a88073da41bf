// Package postgres implements the repository interfaces on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/repository"
	errs "github.com/identware/identity-service/pkg/errors"
)

// isUniqueViolation reports whether the error is a postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports whether the error is a postgres foreign key
// violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

const userColumns = `u.id, u.email, COALESCE(u.password_hash, ''), u.first_name, u.last_name,
	COALESCE(u.profile_image, ''), u.role_id, u.is_active, u.email_verified,
	COALESCE(u.verification_token, ''), u.verification_expires,
	COALESCE(u.reset_selector, ''), COALESCE(u.reset_secret_hash, ''), u.reset_expires,
	u.provider, COALESCE(u.oauth_id, ''), u.created_at, u.updated_at`

const userWithRoleQuery = `
	SELECT ` + userColumns + `,
		r.id, r.name, r.permissions, r.created_at, r.updated_at
	FROM users u
	JOIN roles r ON r.id = u.role_id`

// UserRepository is the postgres implementation of repository.UserRepository.
type UserRepository struct {
	db repository.DB
}

// NewUserRepository creates a postgres-backed user repository.
func NewUserRepository(db repository.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUserWithRole(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var r domain.Role
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.ProfileImage, &u.RoleID, &u.IsActive, &u.EmailVerified,
		&u.VerificationToken, &u.VerificationExpires,
		&u.ResetSelector, &u.ResetSecretHash, &u.ResetExpires,
		&u.Provider, &u.OAuthID, &u.CreatedAt, &u.UpdatedAt,
		&r.ID, &r.Name, &r.Permissions, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = &r
	return &u, nil
}

// Create inserts a new identity. Email uniqueness violations map to
// ErrAlreadyExists.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, role_id,
			is_active, email_verified, verification_token, verification_expires,
			provider, oauth_id
		)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, NULLIF($12, ''))
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.RoleID, user.IsActive, user.EmailVerified,
		user.VerificationToken, user.VerificationExpires,
		user.Provider, user.OAuthID,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.AlreadyExists("user", "email", user.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID fetches an identity with its role joined.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, userWithRoleQuery+` WHERE u.id = $1`, id)
	user, err := scanUserWithRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetByEmail fetches an identity by email with its role joined.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, userWithRoleQuery+` WHERE u.email = $1`, email)
	user, err := scanUserWithRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("user", email)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// List returns all identities with roles joined, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, userWithRoleQuery+` ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUserWithRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateProfile updates the identity's mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, profile_image = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.FirstName, user.LastName, user.ProfileImage,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("user", user.ID)
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("user", userID)
	}
	return nil
}

// SetActive toggles the identity's active flag.
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		userID, active,
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("user", userID)
	}
	return nil
}

// Delete removes the identity. Ledger rows cascade.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("user", userID)
	}
	return nil
}

// VerifyEmail consumes an unexpired verification token in a single
// conditional update, so concurrent attempts resolve to one winner.
func (r *UserRepository) VerifyEmail(ctx context.Context, token string) (string, error) {
	query := `
		UPDATE users
		SET email_verified = TRUE,
			verification_token = NULL,
			verification_expires = NULL,
			updated_at = NOW()
		WHERE verification_token = $1 AND verification_expires > NOW()
		RETURNING id`

	var userID string
	if err := r.db.QueryRow(ctx, query, token).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", fmt.Errorf("verify email: %w", err)
	}
	return userID, nil
}

// SetResetToken stores the reset selector and hashed secret, replacing any
// outstanding reset token for the identity.
func (r *UserRepository) SetResetToken(ctx context.Context, userID, selector, secretHash string, expires time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET reset_selector = $2, reset_secret_hash = $3, reset_expires = $4, updated_at = NOW()
		WHERE id = $1`,
		userID, selector, secretHash, expires,
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("user", userID)
	}
	return nil
}

// GetByResetSelector fetches the identity holding an unexpired reset
// selector. Expired selectors are indistinguishable from unknown ones.
func (r *UserRepository) GetByResetSelector(ctx context.Context, selector string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		userWithRoleQuery+` WHERE u.reset_selector = $1 AND u.reset_expires > NOW()`,
		selector,
	)
	user, err := scanUserWithRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get user by reset selector: %w", err)
	}
	return user, nil
}

// ResetPassword sets the new hash and clears the reset token, guarded on the
// selector still being current. A false return means the token was consumed
// or replaced concurrently.
func (r *UserRepository) ResetPassword(ctx context.Context, userID, selector, passwordHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $3,
			reset_selector = NULL,
			reset_secret_hash = NULL,
			reset_expires = NULL,
			updated_at = NOW()
		WHERE id = $1 AND reset_selector = $2 AND reset_expires > NOW()`,
		userID, selector, passwordHash,
	)
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
