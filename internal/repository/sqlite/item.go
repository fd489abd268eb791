package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/fileshare/internal/apperror"
	"github.com/sakif/fileshare/internal/model"
	"github.com/sakif/fileshare/internal/repository"
)

// ItemDB implements repository.ItemRepository on SQLite.
type ItemDB struct {
	conn *sql.DB
}

// compile-time check that *ItemDB implements repository.ItemRepository
var _ repository.ItemRepository = (*ItemDB)(nil)

// Create inserts a new item record. The caller must have written the
// backing file already — record insertion is the final step of an upload,
// so a crash mid-upload leaves an orphan file rather than a record pointing
// at nothing.
func (i *ItemDB) Create(ctx context.Context, item *model.Item) error {
	item.ID = xid.New().String()
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := i.conn.ExecContext(ctx,
		`INSERT INTO items (id, user_id, filename, shared, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.UserID,
		item.Filename,
		item.Shared,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating item: %w", err)
	}

	return nil
}

// GetByID retrieves a single item by its ID.
func (i *ItemDB) GetByID(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item

	err := i.conn.QueryRowContext(ctx,
		`SELECT id, user_id, filename, shared, created_at, updated_at
		 FROM items
		 WHERE id = ?`,
		id,
	).Scan(
		&item.ID,
		&item.UserID,
		&item.Filename,
		&item.Shared,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("item", id)
		}
		return nil, fmt.Errorf("sqlite: getting item %s: %w", id, err)
	}

	return &item, nil
}

// ListByUser retrieves a user's items, newest first. The filter's Shared
// field narrows by visibility when non-nil — profile pages use Shared=true
// to show a stranger only what the owner has shared.
func (i *ItemDB) ListByUser(ctx context.Context, filter repository.ItemFilter, opts repository.ListOptions) ([]model.Item, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, user_id, filename, shared, created_at, updated_at
	          FROM items
	          WHERE user_id = ?`
	args := []any{filter.UserID}
	if filter.Shared != nil {
		query += ` AND shared = ?`
		args = append(args, *filter.Shared)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := i.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing items for user %s: %w", filter.UserID, err)
	}
	defer rows.Close()

	items := make([]model.Item, 0, limit)
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Filename, &item.Shared,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating items: %w", err)
	}

	return items, nil
}

// Update modifies an existing item. Only the shared flag is mutable —
// renaming or replacing the backing file is modelled as delete + re-upload.
func (i *ItemDB) Update(ctx context.Context, item *model.Item) error {
	item.UpdatedAt = time.Now()

	result, err := i.conn.ExecContext(ctx,
		`UPDATE items SET shared = ?, updated_at = ? WHERE id = ?`,
		item.Shared,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating item %s: %w", item.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", item.ID)
	}

	return nil
}

// Delete removes an item record by its ID. The caller removes the backing
// file first, so a crash between the two steps leaves an orphan record
// (detectable and cleanable) rather than an unowned file eating disk.
func (i *ItemDB) Delete(ctx context.Context, id string) error {
	result, err := i.conn.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting item %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", id)
	}

	return nil
}
