// Package service implements the item application services. Commands apply
// lifecycle transitions and record them as operations; queries read item
// state back out with filtering and pagination.
package service

import (
	stderrors "errors"
	"time"

	"github.com/plantworks/manufacturing/internal/errors"
	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/storage"
)

const (
	// DefaultPageSize applies when a list request leaves page_size unset.
	DefaultPageSize = 50
	// MaxPageSize caps explicit page_size values.
	MaxPageSize = 1000
)

// mapStorageError converts storage sentinels into coded errors.
func mapStorageError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, storage.ErrNotFound):
		e := errors.New(errors.CodeNotFound, "item not found")
		e.Metadata = map[string]string{"id": id}
		return e
	case stderrors.Is(err, storage.ErrAlreadyExists):
		e := errors.New(errors.CodeItemDuplicate, "item already exists")
		e.Metadata = map[string]string{"id": id}
		return e
	case stderrors.Is(err, storage.ErrEtagMismatch):
		e := errors.New(errors.CodeConcurrencyConflict, "item was modified concurrently")
		e.Metadata = map[string]string{"id": id}
		return e
	case stderrors.Is(err, storage.ErrInvalidPageToken):
		return errors.Wrap(errors.CodeInvalidPageToken, "invalid page token", err)
	default:
		return err
	}
}

// renderItem converts an item into the loosely-typed form operation records
// carry for the Operations API.
func renderItem(item domain.Item) map[string]any {
	return map[string]any{
		"id":           item.ID,
		"display_name": item.DisplayName,
		"title":        item.Title,
		"description":  item.Description,
		"state":        item.State.String(),
		"etag":         item.Etag,
		"uid":          item.UID,
		"create_time":  item.CreateTime.UTC().Format(time.RFC3339Nano),
		"update_time":  item.UpdateTime.UTC().Format(time.RFC3339Nano),
	}
}
