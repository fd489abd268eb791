package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sakif/fileshare/internal/apperror"
	"github.com/sakif/fileshare/internal/auth"
	"github.com/sakif/fileshare/internal/model"
	"github.com/sakif/fileshare/internal/repository"
	"github.com/sakif/fileshare/internal/storage"
)

// In-memory mocks for both repositories. They share one mockData value so
// that deleting a user can emulate the database's ON DELETE CASCADE on
// item records, which the real schema provides.

type mockData struct {
	users  map[string]*model.User
	items  []*model.Item
	nextID int
}

func (d *mockData) id(prefix string) string {
	d.nextID++
	return fmt.Sprintf("%s-%d", prefix, d.nextID)
}

type mockUserRepo struct{ data *mockData }

var _ repository.UserRepository = (*mockUserRepo)(nil)

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperror.ValidationFailed("email", "email address is already taken")
		}
	}
	user.ID = m.data.id("user")
	stored := *user
	m.data.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.data.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.data.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockUserRepo) List(_ context.Context, _ repository.ListOptions) ([]model.User, error) {
	result := make([]model.User, 0, len(m.data.users))
	for _, u := range m.data.users {
		result = append(result, *u)
	}
	return result, nil
}

func (m *mockUserRepo) Count(_ context.Context) (int, error) {
	return len(m.data.users), nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := m.data.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored := *user
	m.data.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.data.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.data.users, id)
	// Emulate ON DELETE CASCADE on items.user_id.
	kept := m.data.items[:0]
	for _, item := range m.data.items {
		if item.UserID != id {
			kept = append(kept, item)
		}
	}
	m.data.items = kept
	return nil
}

type mockItemRepo struct{ data *mockData }

var _ repository.ItemRepository = (*mockItemRepo)(nil)

func (m *mockItemRepo) Create(_ context.Context, item *model.Item) error {
	if _, ok := m.data.users[item.UserID]; !ok {
		return fmt.Errorf("mock: foreign key violation: no user %s", item.UserID)
	}
	item.ID = m.data.id("item")
	stored := *item
	m.data.items = append(m.data.items, &stored)
	return nil
}

func (m *mockItemRepo) GetByID(_ context.Context, id string) (*model.Item, error) {
	for _, item := range m.data.items {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("item", id)
}

// ListByUser returns the user's items in reverse insertion order, matching
// the real repository's newest-first ordering.
func (m *mockItemRepo) ListByUser(_ context.Context, filter repository.ItemFilter, _ repository.ListOptions) ([]model.Item, error) {
	result := make([]model.Item, 0, len(m.data.items))
	for i := len(m.data.items) - 1; i >= 0; i-- {
		item := m.data.items[i]
		if item.UserID != filter.UserID {
			continue
		}
		if filter.Shared != nil && item.Shared != *filter.Shared {
			continue
		}
		result = append(result, *item)
	}
	return result, nil
}

func (m *mockItemRepo) Update(_ context.Context, item *model.Item) error {
	for i, existing := range m.data.items {
		if existing.ID == item.ID {
			stored := *item
			m.data.items[i] = &stored
			return nil
		}
	}
	return apperror.NotFound("item", item.ID)
}

func (m *mockItemRepo) Delete(_ context.Context, id string) error {
	for i, existing := range m.data.items {
		if existing.ID == id {
			m.data.items = append(m.data.items[:i], m.data.items[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("item", id)
}

// fixture bundles the services with their shared in-memory state and a
// real storage layer rooted in a temp directory.
type fixture struct {
	data    *mockData
	users   *mockUserRepo
	items   *mockItemRepo
	store   *storage.Store
	userSvc *UserService
	itemSvc *ItemService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	data := &mockData{users: make(map[string]*model.User)}
	users := &mockUserRepo{data: data}
	items := &mockItemRepo{data: data}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := storage.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	passwords := auth.NewPasswordServiceForTest(4)

	return &fixture{
		data:    data,
		users:   users,
		items:   items,
		store:   store,
		userSvc: NewUserService(users, items, store, passwords, logger),
		itemSvc: NewItemService(items, users, store, logger),
	}
}

// register is a helper that creates an account through the service (so all
// side effects — hashing, salt, storage provisioning — happen for real)
// and fails the test on error.
func (f *fixture) register(t *testing.T, actor *model.User, name, email, password string) *model.User {
	t.Helper()
	user, err := f.userSvc.Register(context.Background(), actor, name, email, password, password)
	if err != nil {
		t.Fatalf("register(%s) error = %v", email, err)
	}
	return user
}
