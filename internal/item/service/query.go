package service

import (
	"context"

	"github.com/plantworks/manufacturing/internal/errors"
	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/platform/grpc/pagination"
	"github.com/plantworks/manufacturing/internal/storage"
)

// orderableFields lists the item fields a listing may be ordered by.
var orderableFields = []string{
	"display_name", "title", "state", "uid", "create_time", "update_time",
}

// Query reads item state.
type Query struct {
	store storage.ItemStore
}

// NewQuery wires a query service over a store.
func NewQuery(store storage.ItemStore) *Query {
	return &Query{store: store}
}

// ListItemsRequest carries list parameters. PageSize distinguishes unset
// (nil, which takes the default) from an explicit value, which is clamped.
type ListItemsRequest struct {
	Filter    string
	OrderBy   string
	PageSize  *int32
	PageToken string
}

// GetItem returns one item by id.
func (q *Query) GetItem(ctx context.Context, id string) (domain.Item, error) {
	parsed, err := domain.ParseID(id)
	if err != nil {
		return domain.Item{}, err
	}

	item, err := q.store.GetItem(ctx, parsed)
	if err != nil {
		return domain.Item{}, mapStorageError(err, parsed)
	}
	return item, nil
}

// ListItems returns one page of items.
func (q *Query) ListItems(ctx context.Context, req ListItemsRequest) (storage.ItemPage, error) {
	pageSize := pagination.ClampPageSize(req.PageSize, pagination.PageSizeConfig{
		Default: DefaultPageSize,
		Max:     MaxPageSize,
	})

	orderBy, err := pagination.NormalizeOrderBy(req.OrderBy, pagination.OrderByConfig{
		Default: "create_time",
		Allowed: orderableFields,
	})
	if err != nil {
		return storage.ItemPage{}, errors.Wrap(errors.CodeInvalidOrderBy, "invalid order_by expression", err)
	}

	page, err := q.store.ListItems(ctx, storage.ListItemsRequest{
		Filter:    req.Filter,
		OrderBy:   orderBy,
		PageSize:  pageSize,
		PageToken: req.PageToken,
	})
	if err != nil {
		return storage.ItemPage{}, mapStorageError(err, "")
	}
	return page, nil
}
