package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/repository"
	errs "github.com/identware/identity-service/pkg/errors"
)

const roleColumns = `id, name, permissions, created_at, updated_at`

// RoleRepository is the postgres implementation of repository.RoleRepository.
type RoleRepository struct {
	db repository.DB
}

// NewRoleRepository creates a postgres-backed role repository.
func NewRoleRepository(db repository.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var r domain.Role
	if err := row.Scan(&r.ID, &r.Name, &r.Permissions, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a role. Name uniqueness violations map to ErrAlreadyExists.
func (r *RoleRepository) Create(ctx context.Context, role *domain.Role) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO roles (id, name, permissions)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		role.ID, role.Name, role.Permissions,
	).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.AlreadyExists("role", "name", role.Name)
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// GetByID fetches a role by ID.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("role", id)
		}
		return nil, fmt.Errorf("get role by id: %w", err)
	}
	return role, nil
}

// GetByName fetches a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("role", name)
		}
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	return role, nil
}

// List returns all roles ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]*domain.Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []*domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// Update replaces the role's name and permission grants.
func (r *RoleRepository) Update(ctx context.Context, role *domain.Role) error {
	err := r.db.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, permissions = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		role.ID, role.Name, role.Permissions,
	).Scan(&role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("role", role.ID)
		}
		if isUniqueViolation(err) {
			return errs.AlreadyExists("role", "name", role.Name)
		}
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// Delete removes a role. Roles still assigned to identities are protected by
// the foreign key and map to a conflict.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &errs.AppError{
				Code:    "CONFLICT",
				Message: "role is still assigned to users",
				Status:  http.StatusConflict,
				Err:     errs.ErrConflict,
			}
		}
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("role", id)
	}
	return nil
}
