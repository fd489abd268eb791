package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fileshare/internal/auth"
	"github.com/sakif/fileshare/internal/model"
	"github.com/sakif/fileshare/internal/service"
)

// UserHandler manages user listing, profiles, and account lifecycle.
// All authorization decisions live in the service/policy layers; the
// handler's job is decoding requests and encoding responses.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type updateUserRequest struct {
	Name                 string `json:"name"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

// profileResponse bundles a user with the items visible to the viewer.
type profileResponse struct {
	User  *model.User  `json:"user"`
	Items []model.Item `json:"items"`
}

// HandleList returns all registered users.
//
// HTTP: GET /api/users?limit=N&offset=N
// Auth: Required, admin only
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	users, err := h.users.List(r.Context(), actor, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// HandleProfile returns a user together with their items, filtered by what
// the viewer is allowed to see: owners see everything, everyone else sees
// only the shared items.
//
// HTTP: GET /api/users/{id}?limit=N&offset=N
// Auth: Optional
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "user ID is required"})
		return
	}

	actor, _ := auth.ActorFromContext(r.Context())

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	user, items, err := h.users.Profile(r.Context(), actor, id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{User: user, Items: items})
}

// HandleUpdate changes a user's name and/or password. Email is immutable —
// it anchors the user's storage directory.
//
// HTTP: PUT /api/users/{id}
// Auth: Required, self only (not even admins may edit other accounts)
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor, _ := auth.ActorFromContext(r.Context())

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("user update: invalid JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	user, err := h.users.Update(r.Context(), actor, id, req.Name, req.Password, req.PasswordConfirmation)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes a user account along with their storage directory
// and every item in it.
//
// HTTP: DELETE /api/users/{id}
// Auth: Required, self or admin
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor, _ := auth.ActorFromContext(r.Context())

	if err := h.users.Delete(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user deleted",
		slog.String("userID", id),
		slog.String("deletedBy", actor.ID),
	)

	w.WriteHeader(http.StatusNoContent)
}
