package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/fileshare/internal/apperror"
	"github.com/sakif/fileshare/internal/model"
	"github.com/sakif/fileshare/internal/policy"
	"github.com/sakif/fileshare/internal/repository"
	"github.com/sakif/fileshare/internal/storage"
)

// ItemService handles the upload/download lifecycle of items, keeping each
// backing file and its database record consistent with one another.
type ItemService struct {
	items  repository.ItemRepository
	users  repository.UserRepository
	store  *storage.Store
	logger *slog.Logger
}

// NewItemService creates an ItemService.
func NewItemService(
	items repository.ItemRepository,
	users repository.UserRepository,
	store *storage.Store,
	logger *slog.Logger,
) *ItemService {
	return &ItemService{
		items:  items,
		users:  users,
		store:  store,
		logger: logger,
	}
}

// Store saves an uploaded file as a new item owned by the actor.
//
// The stored name is derived from the upload's original name; uploading a
// second file with the same name overwrites the first (last writer wins —
// a documented quirk, not a bug to guard against).
//
// Write order: file first, record second. The record insert is the commit
// point — a crash in between leaves an orphan file, never a record whose
// file is missing. If the insert itself fails, the file is removed again
// best-effort.
func (s *ItemService) Store(ctx context.Context, actor *model.User, filename string, size int64, r io.Reader, shared bool) (*model.Item, error) {
	if err := policy.Check(actor, policy.CreateItem, policy.Target{}); err != nil {
		return nil, err
	}

	stored := storage.SafeFilename(filename)
	if stored == "" {
		return nil, apperror.ValidationFailed("file", "a file is required")
	}
	// A negative size means the caller is streaming and doesn't know the
	// length yet; emptiness is then checked after the write.
	if size == 0 {
		return nil, apperror.ValidationFailed("file", "uploaded file is empty")
	}

	written, err := s.store.SaveFile(actor.StorageRoot, stored, r)
	if err != nil {
		return nil, fmt.Errorf("writing upload: %w", err)
	}
	if written == 0 {
		if rmErr := s.store.RemoveFile(actor.StorageRoot, stored); rmErr != nil {
			s.logger.Error("removing empty upload", slog.String("file", stored), slog.String("error", rmErr.Error()))
		}
		return nil, apperror.ValidationFailed("file", "uploaded file is empty")
	}

	item := &model.Item{
		UserID:   actor.ID,
		Filename: stored,
		Shared:   shared,
	}
	if err := s.items.Create(ctx, item); err != nil {
		// Restore the file/record invariant; if this cleanup fails too we
		// can only log the orphan.
		if rmErr := s.store.RemoveFile(actor.StorageRoot, stored); rmErr != nil {
			s.logger.Error("orphan file left after failed item insert",
				slog.String("file", stored),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("item stored",
		slog.String("id", item.ID),
		slog.String("owner", actor.ID),
		slog.String("filename", stored),
		slog.Int64("bytes", written),
		slog.Bool("shared", shared),
	)

	return item, nil
}

// Get returns an item's metadata if the actor may view it: shared items
// are visible to everyone, private ones to their owner only.
func (s *ItemService) Get(ctx context.Context, actor *model.User, id string) (*model.Item, error) {
	item, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Check(actor, policy.ViewItem, policy.Target{Item: item}); err != nil {
		return nil, err
	}

	return item, nil
}

// Open returns an item plus a reader over its backing file, for download.
// The same visibility rule as Get applies. The caller must close the file.
func (s *ItemService) Open(ctx context.Context, actor *model.User, id string) (*model.Item, *os.File, error) {
	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}

	owner, err := s.users.GetByID(ctx, item.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading item owner: %w", err)
	}

	f, err := s.store.OpenFile(owner.StorageRoot, item.Filename)
	if err != nil {
		// Record without file: a concurrent delete may have won, or a
		// crash left an orphan record. Either way the item is effectively
		// gone from the reader's point of view.
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, apperror.NotFound("item", id)
		}
		return nil, nil, err
	}

	return item, f, nil
}

// ListMine returns the actor's own items, newest first.
func (s *ItemService) ListMine(ctx context.Context, actor *model.User, limit, offset int) ([]model.Item, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("sign in to list your items")
	}

	items, err := s.items.ListByUser(ctx,
		repository.ItemFilter{UserID: actor.ID},
		repository.ListOptions{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	return items, nil
}

// Update changes an item's shared flag. Owner only. Renaming or replacing
// the file is not supported — that is a delete followed by a fresh upload.
func (s *ItemService) Update(ctx context.Context, actor *model.User, id string, shared bool) (*model.Item, error) {
	item, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Check(actor, policy.EditItem, policy.Target{Item: item}); err != nil {
		return nil, err
	}

	item.Shared = shared
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("item updated",
		slog.String("id", item.ID),
		slog.Bool("shared", item.Shared),
	)
	return item, nil
}

// Delete removes an item: backing file first (its absence is tolerated),
// then the record. Owner only. A crash between the two steps leaves an
// orphan record, which is detectable and cleanable — the reverse order
// could leave an unowned file consuming disk with nothing pointing at it.
func (s *ItemService) Delete(ctx context.Context, actor *model.User, id string) error {
	item, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}

	if err := policy.Check(actor, policy.DeleteItem, policy.Target{Item: item}); err != nil {
		return err
	}

	owner, err := s.users.GetByID(ctx, item.UserID)
	if err != nil {
		return fmt.Errorf("loading item owner: %w", err)
	}

	if err := s.store.RemoveFile(owner.StorageRoot, item.Filename); err != nil {
		return fmt.Errorf("removing file: %w", err)
	}

	if err := s.items.Delete(ctx, item.ID); err != nil {
		return err
	}

	s.logger.Info("item deleted",
		slog.String("id", item.ID),
		slog.String("by", actor.ID),
	)
	return nil
}

func (s *ItemService) getByID(ctx context.Context, id string) (*model.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "item ID is required")
	}
	return s.items.GetByID(ctx, id)
}
