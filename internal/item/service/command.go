package service

import (
	"context"
	"time"

	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/operation"
	"github.com/plantworks/manufacturing/internal/storage"
)

// Command applies item mutations. Every mutation runs synchronously and is
// recorded as a completed operation for later polling.
type Command struct {
	store    storage.ItemStore
	registry *operation.Registry
	now      func() time.Time
}

// NewCommand wires a command service over a store and operation registry.
func NewCommand(store storage.ItemStore, registry *operation.Registry) *Command {
	return &Command{store: store, registry: registry, now: time.Now}
}

// CreateItemRequest carries the fields of a create command. ID is optional;
// when empty the server generates one.
type CreateItemRequest struct {
	ID          string
	DisplayName string
	Title       string
	Description string
}

// MutationResult reports a completed mutation: the operation that recorded
// it and the item snapshot it produced.
type MutationResult struct {
	OperationID string
	Item        domain.Item
}

// UpdateItemRequest carries the fields of an update command. Etag, when set,
// conditions the write on the stored etag still matching.
type UpdateItemRequest struct {
	ID        string
	Overrides domain.UpdateOverrides
	Etag      string
}

// TransitionRequest identifies the target of a delete, annihilate, block,
// or unblock command.
type TransitionRequest struct {
	ID   string
	Etag string
}

// CreateItem creates a new item in the Creating state.
func (c *Command) CreateItem(ctx context.Context, req CreateItemRequest) (MutationResult, error) {
	id := req.ID
	if id == "" {
		generated, err := domain.NewID()
		if err != nil {
			return MutationResult{}, err
		}
		id = generated
	} else {
		parsed, err := domain.ParseID(id)
		if err != nil {
			return MutationResult{}, err
		}
		id = parsed
	}

	item, err := domain.Create(domain.CreateInput{
		ID:          id,
		DisplayName: req.DisplayName,
		Title:       req.Title,
		Description: req.Description,
	}, c.now, nil)
	if err != nil {
		return MutationResult{}, err
	}

	if err := c.store.CreateItem(ctx, item); err != nil {
		return MutationResult{}, mapStorageError(err, id)
	}
	return c.record("create", item)
}

// UpdateItem applies field overrides to an item.
func (c *Command) UpdateItem(ctx context.Context, req UpdateItemRequest) (MutationResult, error) {
	return c.transition(ctx, req.ID, req.Etag, "update", func(item domain.Item) (domain.Item, error) {
		return item.Update(req.Overrides, c.now)
	})
}

// DeleteItem marks an item as soft-deleted.
func (c *Command) DeleteItem(ctx context.Context, req TransitionRequest) (MutationResult, error) {
	return c.transition(ctx, req.ID, req.Etag, "delete", func(item domain.Item) (domain.Item, error) {
		return item.Delete(c.now)
	})
}

// AnnihilateItem marks an item for irreversible physical removal.
func (c *Command) AnnihilateItem(ctx context.Context, req TransitionRequest) (MutationResult, error) {
	return c.transition(ctx, req.ID, req.Etag, "annihilate", func(item domain.Item) (domain.Item, error) {
		return item.Annihilate(c.now)
	})
}

// BlockItem starts blocking an active item.
func (c *Command) BlockItem(ctx context.Context, req TransitionRequest) (MutationResult, error) {
	return c.transition(ctx, req.ID, req.Etag, "block", func(item domain.Item) (domain.Item, error) {
		return item.Block(c.now)
	})
}

// UnblockItem starts unblocking a blocked item.
func (c *Command) UnblockItem(ctx context.Context, req TransitionRequest) (MutationResult, error) {
	return c.transition(ctx, req.ID, req.Etag, "unblock", func(item domain.Item) (domain.Item, error) {
		return item.Unblock(c.now)
	})
}

// transition loads the item, applies the lifecycle change, and writes it
// back conditioned on the etag the caller saw. Two racing commands both
// pass the in-memory check but only one conditional write lands.
func (c *Command) transition(ctx context.Context, id, etag, verb string, apply func(domain.Item) (domain.Item, error)) (MutationResult, error) {
	parsed, err := domain.ParseID(id)
	if err != nil {
		return MutationResult{}, err
	}

	item, err := c.store.GetItem(ctx, parsed)
	if err != nil {
		return MutationResult{}, mapStorageError(err, parsed)
	}

	next, err := apply(item)
	if err != nil {
		return MutationResult{}, err
	}

	guard := etag
	if guard == "" {
		guard = item.Etag
	}
	if err := c.store.UpdateItem(ctx, next, guard); err != nil {
		return MutationResult{}, mapStorageError(err, parsed)
	}
	return c.record(verb, next)
}

// record registers a completed operation for the mutation.
func (c *Command) record(verb string, item domain.Item) (MutationResult, error) {
	op, err := operation.New[domain.Item](operation.Metadata{
		ItemID:     item.ID,
		Verb:       verb,
		CreateTime: c.now().UTC(),
		Item:       renderItem(item),
	})
	if err != nil {
		return MutationResult{}, err
	}
	op.Succeed(item)
	c.registry.Put(op.Snapshot(renderItem))
	return MutationResult{OperationID: op.ID, Item: item}, nil
}
