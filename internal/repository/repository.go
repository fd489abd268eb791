// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite);
// tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/fileshare/internal/model"
)

// ListOptions carries pagination parameters for listing queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository persists user accounts.
//
// GetByEmail must match case-insensitively — the database enforces the
// same rule with a NOCASE unique index, so two registrations differing
// only in case cannot both succeed even under concurrent writers.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
}

// ItemFilter narrows item listings. Shared == nil means "any visibility".
type ItemFilter struct {
	UserID string
	Shared *bool
}

// ItemRepository persists item records. Deleting a user cascades to their
// items at the database level; the backing files are the storage layer's
// concern. Listings are always newest first.
type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	GetByID(ctx context.Context, id string) (*model.Item, error)
	ListByUser(ctx context.Context, filter ItemFilter, opts ListOptions) ([]model.Item, error)
	Update(ctx context.Context, item *model.Item) error
	Delete(ctx context.Context, id string) error
}
