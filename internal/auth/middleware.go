package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/sakif/fileshare/internal/model"
	"github.com/sakif/fileshare/internal/repository"
)

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the actor value.
type contextKey string

const actorKey contextKey = "actor"

// CookieName is the cookie that carries the session token.
const CookieName = "token"

// RequireAuth enforces authentication on protected routes. It reads the
// session token from the HttpOnly cookie, validates it, resolves the full
// user record, and stores it in the request context. Missing or invalid
// tokens end the request with 401.
//
// The resolution step is where salt rotation bites: the token's salt claim
// must equal the salt currently stored on the user row. A token issued
// before a password change carries the old salt and is rejected here, even
// though its signature and expiry are still valid.
func RequireAuth(tokens *TokenService, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := resolveActor(r, tokens, users)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the actor if a valid token is present but never
// blocks the request. Use it on routes that anonymous visitors may hit —
// public profiles, shared-item downloads — where a signed-in user sees
// more than a stranger does.
func OptionalAuth(tokens *TokenService, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor, err := resolveActor(r, tokens, users); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))
			}
			// Always continue — no 401 even without a token.
			next.ServeHTTP(w, r)
		})
	}
}

// ActorFromContext retrieves the authenticated user from the request
// context. Returns (nil, false) for an anonymous request.
func ActorFromContext(ctx context.Context) (*model.User, bool) {
	actor, ok := ctx.Value(actorKey).(*model.User)
	return actor, ok && actor != nil
}

// resolveActor reads the session cookie, validates the token, and loads
// the user it identifies.
func resolveActor(r *http.Request, tokens *TokenService, users repository.UserRepository) (*model.User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		// http.ErrNoCookie — not an error, just anonymous.
		return nil, err
	}

	userID, salt, err := tokens.Validate(cookie.Value)
	if err != nil {
		return nil, err
	}

	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(user.Salt), []byte(salt)) != 1 {
		return nil, errStaleToken
	}

	return user, nil
}

var errStaleToken = errors.New("auth: token predates credential rotation")
