package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/service"
	errs "github.com/identware/identity-service/pkg/errors"
)

// UserService is the slice of the user service the handler uses.
type UserService interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in service.UpdateProfileInput) (*domain.User, error)
	Deactivate(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}

// UserHandler exposes profile and user administration endpoints.
type UserHandler struct {
	users UserService
}

// NewUserHandler creates the user handler.
func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

type updateProfileRequest struct {
	FirstName    *string `json:"first_name" validate:"omitempty,max=100"`
	LastName     *string `json:"last_name" validate:"omitempty,max=100"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,url|eq="`
}

// Me returns the authenticated identity's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	user, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe applies profile changes to the authenticated identity.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	var req updateProfileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), sess.UserID, service.UpdateProfileInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// List returns all identities. Admin surface.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get returns one identity by ID. Admin surface.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Deactivate disables an identity and kills its sessions. Admin surface.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "user deactivated")
}

// Delete removes an identity. Admin surface.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "user deleted")
}
