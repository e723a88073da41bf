package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/service"
)

// RoleService is the slice of the role service the handler uses.
type RoleService interface {
	Create(ctx context.Context, in service.RoleInput) (*domain.Role, error)
	Get(ctx context.Context, id string) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)
	Update(ctx context.Context, id string, in service.RoleInput) (*domain.Role, error)
	Delete(ctx context.Context, id string) error
}

// RoleHandler exposes role administration endpoints.
type RoleHandler struct {
	roles RoleService
}

// NewRoleHandler creates the role handler.
func NewRoleHandler(roles RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

type roleRequest struct {
	Name        string             `json:"name" validate:"required,max=50"`
	Permissions domain.Permissions `json:"permissions"`
}

// Create stores a new role.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := h.roles.Create(r.Context(), service.RoleInput{
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// List returns all roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// Get returns one role by ID.
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// Update replaces a role's name and permission grants.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := h.roles.Update(r.Context(), chi.URLParam(r, "id"), service.RoleInput{
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// Delete removes an unassigned role.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "role deleted")
}
