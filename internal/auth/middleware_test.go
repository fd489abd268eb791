package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sakif/fileshare/internal/apperror"
	"github.com/sakif/fileshare/internal/model"
	"github.com/sakif/fileshare/internal/repository"
)

// mockUsers implements just enough of repository.UserRepository for the
// middleware: GetByID. The rest are unused stubs.
type mockUsers struct {
	users map[string]*model.User
}

func (m *mockUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (m *mockUsers) Create(context.Context, *model.User) error { return nil }
func (m *mockUsers) GetByEmail(context.Context, string) (*model.User, error) {
	return nil, apperror.NotFound("user", "")
}
func (m *mockUsers) List(context.Context, repository.ListOptions) ([]model.User, error) {
	return nil, nil
}
func (m *mockUsers) Count(context.Context) (int, error)        { return len(m.users), nil }
func (m *mockUsers) Update(context.Context, *model.User) error { return nil }
func (m *mockUsers) Delete(context.Context, string) error      { return nil }

func newMiddlewareFixture(t *testing.T) (*TokenService, *mockUsers, *model.User) {
	t.Helper()
	ts := newTestTokenService(t)
	user := &model.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Salt: "current-salt"}
	users := &mockUsers{users: map[string]*model.User{"u1": user}}
	return ts, users, user
}

// echoActor is a terminal handler that reports whether an actor was
// resolved into the context.
func echoActor(t *testing.T, got **model.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, ok := ActorFromContext(r.Context()); ok {
			*got = actor
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_ValidToken(t *testing.T) {
	ts, users, user := newMiddlewareFixture(t)

	token, _ := ts.Generate(user.ID, user.Salt, SessionDuration)

	var actor *model.User
	handler := RequireAuth(ts, users)(echoActor(t, &actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if actor == nil || actor.ID != user.ID {
		t.Errorf("actor = %v, want user %s", actor, user.ID)
	}
}

func TestRequireAuth_MissingCookie(t *testing.T) {
	ts, users, _ := newMiddlewareFixture(t)

	handler := RequireAuth(ts, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuth_SaltRotationInvalidatesToken(t *testing.T) {
	ts, users, user := newMiddlewareFixture(t)

	token, _ := ts.Generate(user.ID, user.Salt, RememberMeDuration)

	// Rotate the user's salt, as a password change would.
	users.users["u1"].Salt = "rotated-salt"

	handler := RequireAuth(ts, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached with a stale token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for token issued before salt rotation", rec.Code)
	}
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	ts, users, _ := newMiddlewareFixture(t)

	var actor *model.User
	handler := OptionalAuth(ts, users)(echoActor(t, &actor))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if actor != nil {
		t.Errorf("actor = %v, want nil for anonymous request", actor)
	}
}

func TestOptionalAuth_ResolvesActorWhenPresent(t *testing.T) {
	ts, users, user := newMiddlewareFixture(t)

	token, _ := ts.Generate(user.ID, user.Salt, SessionDuration)

	var actor *model.User
	handler := OptionalAuth(ts, users)(echoActor(t, &actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if actor == nil || actor.ID != user.ID {
		t.Errorf("actor = %v, want user %s", actor, user.ID)
	}
}
