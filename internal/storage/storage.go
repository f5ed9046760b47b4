// Package storage defines persistence contracts for item state.
package storage

import (
	"context"
	"errors"

	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/platform/grpc/pagination"
)

var (
	// ErrNotFound indicates a requested item record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates an item with the same id already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrEtagMismatch indicates the stored etag no longer matches the one
	// the write was conditioned on.
	ErrEtagMismatch = errors.New("etag mismatch")
	// ErrInvalidPageToken indicates a malformed page token or one issued
	// under different query parameters.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// ListItemsRequest describes one page of an item listing.
type ListItemsRequest struct {
	Filter    string
	OrderBy   pagination.OrderBy
	PageSize  int
	PageToken string
}

// ItemPage stores one page of item records.
type ItemPage struct {
	Items         []domain.Item
	NextPageToken string
	TotalSize     int
}

// ItemStore persists item records.
//
// UpdateItem is a conditional write: it replaces the stored record only
// while the stored etag still equals previousEtag, otherwise it returns
// ErrEtagMismatch. DeleteItem removes the row physically.
type ItemStore interface {
	CreateItem(ctx context.Context, item domain.Item) error
	GetItem(ctx context.Context, id string) (domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item, previousEtag string) error
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context, req ListItemsRequest) (ItemPage, error)
	ListTransitioning(ctx context.Context) ([]domain.Item, error)
}
