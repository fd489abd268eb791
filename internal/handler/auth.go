package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/fileshare/internal/auth"
	"github.com/sakif/fileshare/internal/service"
)

// AuthHandler manages registration, session login/logout, and the
// current-user endpoint.
//
// DEPENDENCY CHAIN:
//   - users  *service.UserService → registration and credential checks
//   - tokens *auth.TokenService   → issues JWT session tokens
type AuthHandler struct {
	users  *service.UserService
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(users *service.UserService, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/register
// Auth: Optional — the first account ever registers itself (and becomes
// the admin); after that only an authenticated admin may create accounts.
//
// A successfully self-registered user is logged in immediately: we issue
// the session cookie in the same response. Admin-created accounts do NOT
// get a cookie — the admin stays logged in as themselves.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("register: invalid JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	actor, _ := auth.ActorFromContext(r.Context())

	user, err := h.users.Register(r.Context(), actor, req.Name, req.Email, req.Password, req.PasswordConfirmation)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.Bool("admin", user.Admin),
	)

	if actor == nil {
		if err := h.issueSession(w, user.ID, user.Salt, auth.SessionDuration); err != nil {
			h.logger.Error("register: token generation failed", slog.String("error", err.Error()))
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin verifies credentials and issues a session cookie.
//
// HTTP: POST /api/login
//
// REMEMBER ME:
// A normal session lasts 24 hours. With rememberMe the token and cookie
// stretch to 30 days. Either way the token embeds the user's current
// credential salt, so changing the password invalidates every outstanding
// session at once.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("login: invalid JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	duration := auth.SessionDuration
	if req.RememberMe {
		duration = auth.RememberMeDuration
	}

	if err := h.issueSession(w, user.ID, user.Salt, duration); err != nil {
		h.logger.Error("login: token generation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.Bool("rememberMe", req.RememberMe),
	)

	writeJSON(w, http.StatusOK, user)
}

// HandleLogout clears the session cookie, effectively logging the user out.
//
// HTTP: POST /api/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL. POST ensures intentional action.
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets the actor in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	writeJSON(w, http.StatusOK, actor)
}

// issueSession sets the JWT as an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = cookie is sent on top-level navigations but not cross-site POSTs.
// Secure should be true in production (HTTPS only). We leave it false for local dev.
func (h *AuthHandler) issueSession(w http.ResponseWriter, userID, salt string, d time.Duration) error {
	tokenStr, err := h.tokens.Generate(userID, salt, d)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int(d.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})
	return nil
}
