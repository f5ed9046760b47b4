package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/platform/grpc/pagination"
	"github.com/plantworks/manufacturing/internal/storage"
	"github.com/plantworks/manufacturing/internal/storage/cursor"
	"github.com/plantworks/manufacturing/internal/storage/filter"
)

const itemColumns = `id, display_name, title, description, state, etag, uid, create_time, update_time`

// CreateItem inserts one item record.
func (s *Store) CreateItem(ctx context.Context, item domain.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.DisplayName,
		item.Title,
		item.Description,
		item.State.String(),
		item.Etag,
		item.UID,
		toMillis(item.CreateTime),
		toMillis(item.UpdateTime),
	)
	if err != nil {
		if isItemUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// GetItem returns one item by id.
func (s *Store) GetItem(ctx context.Context, id string) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Item{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`,
		id,
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, storage.ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// UpdateItem replaces the stored record while the stored etag still equals
// previousEtag. Concurrent writers race on this condition and only one wins.
func (s *Store) UpdateItem(ctx context.Context, item domain.Item, previousEtag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE items
		    SET display_name = ?, title = ?, description = ?,
		        state = ?, etag = ?, update_time = ?
		  WHERE id = ? AND etag = ?`,
		item.DisplayName,
		item.Title,
		item.Description,
		item.State.String(),
		item.Etag,
		toMillis(item.UpdateTime),
		item.ID,
		previousEtag,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetItem(ctx, item.ID); err != nil {
			return err
		}
		return storage.ErrEtagMismatch
	}
	return nil
}

// DeleteItem removes the item row physically.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListItems returns one page of item records matching the request.
func (s *Store) ListItems(ctx context.Context, req storage.ListItemsRequest) (storage.ItemPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ItemPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ItemPage{}, fmt.Errorf("storage is not configured")
	}
	if req.PageSize <= 0 {
		return storage.ItemPage{}, fmt.Errorf("page size must be greater than zero")
	}

	condition, err := filter.ParseItemFilter(req.Filter)
	if err != nil {
		return storage.ItemPage{}, err
	}

	orderKey := orderClause(req.OrderBy)
	offset := 0
	if token := strings.TrimSpace(req.PageToken); token != "" {
		c, err := cursor.Decode(token)
		if err != nil {
			return storage.ItemPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidPageToken, err)
		}
		if err := cursor.ValidateFilterHash(c, req.Filter); err != nil {
			return storage.ItemPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidPageToken, err)
		}
		if err := cursor.ValidateOrderHash(c, orderKey); err != nil {
			return storage.ItemPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidPageToken, err)
		}
		offset = c.Offset
	}

	where := ""
	params := []any{}
	if condition.Clause != "" {
		where = " WHERE " + condition.Clause
		params = append(params, condition.Params...)
	}

	var total int
	countRow := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`+where, params...)
	if err := countRow.Scan(&total); err != nil {
		return storage.ItemPage{}, fmt.Errorf("count items: %w", err)
	}

	query := `SELECT ` + itemColumns + ` FROM items` + where +
		` ORDER BY ` + orderKey + `, id ASC LIMIT ? OFFSET ?`
	rows, err := s.sqlDB.QueryContext(ctx, query, append(params, req.PageSize, offset)...)
	if err != nil {
		return storage.ItemPage{}, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	page := storage.ItemPage{
		Items:     make([]domain.Item, 0, req.PageSize),
		TotalSize: total,
	}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return storage.ItemPage{}, fmt.Errorf("list items: %w", err)
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return storage.ItemPage{}, fmt.Errorf("list items: %w", err)
	}

	if next := offset + len(page.Items); next < total {
		token, err := cursor.Encode(cursor.New(next, req.Filter, orderKey))
		if err != nil {
			return storage.ItemPage{}, fmt.Errorf("encode page token: %w", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ListTransitioning returns all items currently in a transitional state.
func (s *Store) ListTransitioning(ctx context.Context) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items
		  WHERE state IN (?, ?, ?, ?, ?, ?)
		  ORDER BY update_time ASC`,
		domain.StateCreating.String(),
		domain.StateUpdating.String(),
		domain.StateDeleting.String(),
		domain.StateAnnihilating.String(),
		domain.StateBlocking.String(),
		domain.StateUnblocking.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list transitioning items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list transitioning items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transitioning items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var item domain.Item
	var state string
	var createTime int64
	var updateTime int64
	if err := row.Scan(
		&item.ID,
		&item.DisplayName,
		&item.Title,
		&item.Description,
		&state,
		&item.Etag,
		&item.UID,
		&createTime,
		&updateTime,
	); err != nil {
		return domain.Item{}, err
	}

	parsed, err := domain.ParseState(state)
	if err != nil {
		return domain.Item{}, fmt.Errorf("parse stored state: %w", err)
	}
	item.State = parsed
	item.CreateTime = fromMillis(createTime)
	item.UpdateTime = fromMillis(updateTime)
	return item, nil
}

func orderClause(order pagination.OrderBy) string {
	field := order.Field
	if field == "" {
		field = "create_time"
	}
	direction := "ASC"
	if order.Descending {
		direction = "DESC"
	}
	return field + " " + direction
}

func isItemUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "items.id")
}
