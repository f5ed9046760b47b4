package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/plantworks/manufacturing/internal/errors"
	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/operation"
	"github.com/plantworks/manufacturing/internal/storage/sqlite"
)

type testEnv struct {
	store    *sqlite.Store
	registry *operation.Registry
	command  *Command
	query    *Query
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "items.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	registry := operation.NewRegistry()
	return testEnv{
		store:    store,
		registry: registry,
		command:  NewCommand(store, registry),
		query:    NewQuery(store),
	}
}

// settle moves a freshly mutated item to its rest state, standing in for
// the background settler.
func settle(t *testing.T, env testEnv, id string) domain.Item {
	t.Helper()
	ctx := context.Background()

	item, err := env.store.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get item %s: %v", id, err)
	}
	var next domain.Item
	if item.State == domain.StateBlocking {
		next, err = item.SettleBlocked(nil)
	} else {
		next, err = item.SettleActive(nil)
	}
	if err != nil {
		t.Fatalf("settle item %s: %v", id, err)
	}
	if err := env.store.UpdateItem(ctx, next, item.Etag); err != nil {
		t.Fatalf("persist settled item %s: %v", id, err)
	}
	return next
}

func TestCreateItemWithClientID(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.command.CreateItem(context.Background(), CreateItemRequest{
		ID:          "b-max",
		DisplayName: "Bike",
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	if result.Item.ID != "b-max" || result.Item.State != domain.StateCreating {
		t.Fatalf("unexpected created item %+v", result.Item)
	}
	if result.OperationID == "" {
		t.Fatal("expected an operation id")
	}

	record, err := env.registry.Get(result.OperationID)
	if err != nil {
		t.Fatalf("get operation record: %v", err)
	}
	if !record.Done || record.Metadata.Verb != "create" {
		t.Fatalf("unexpected operation record %+v", record)
	}
	if record.Response["id"] != "b-max" {
		t.Fatalf("expected rendered item in record, got %v", record.Response)
	}
	if record.Metadata.Item["id"] != "b-max" || record.Metadata.Item["state"] != "creating" {
		t.Fatalf("expected item snapshot in metadata, got %v", record.Metadata.Item)
	}
}

func TestCreateItemGeneratesID(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.command.CreateItem(context.Background(), CreateItemRequest{DisplayName: "Bike"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if result.Item.ID == "" {
		t.Fatal("expected a generated id")
	}
	if _, err := domain.ParseID(result.Item.ID); err != nil {
		t.Fatalf("generated id %q is invalid: %v", result.Item.ID, err)
	}
}

func TestCreateItemRejectsMalformedID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.command.CreateItem(context.Background(), CreateItemRequest{
		ID:          "Not Valid",
		DisplayName: "Bike",
	})
	if !errors.IsCode(err, errors.CodeItemIDInvalid) {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestCreateItemRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	_, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"})
	if !errors.IsCode(err, errors.CodeItemDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUpdateItemRejectedWhileTransitioning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	title := "Pro Bike"
	_, err := env.command.UpdateItem(ctx, UpdateItemRequest{
		ID:        "b-max",
		Overrides: domain.UpdateOverrides{Title: &title},
	})
	if !errors.IsCode(err, errors.CodeItemInvalidStateTransition) {
		t.Fatalf("expected invalid transition while creating, got %v", err)
	}
}

func TestConditionalWriteOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	active := settle(t, env, "b-max")

	// Two writers condition on the same observed etag. The first lands,
	// the second must lose at write time.
	first, err := env.command.BlockItem(ctx, TransitionRequest{ID: "b-max", Etag: active.Etag})
	if err != nil {
		t.Fatalf("first command: %v", err)
	}
	if first.Item.State != domain.StateBlocking {
		t.Fatalf("expected Blocking, got %v", first.Item.State)
	}

	_, err = env.command.DeleteItem(ctx, TransitionRequest{ID: "b-max", Etag: active.Etag})
	if !errors.IsCode(err, errors.CodeItemInvalidStateTransition) && !errors.IsCode(err, errors.CodeConcurrencyConflict) {
		t.Fatalf("expected the second writer to lose, got %v", err)
	}
}

func TestUpdateItemStaleEtagConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	settle(t, env, "b-max")

	// The etag observed at create time went stale when the item settled.
	title := "Pro Bike"
	_, err = env.command.UpdateItem(ctx, UpdateItemRequest{
		ID:        "b-max",
		Overrides: domain.UpdateOverrides{Title: &title},
		Etag:      created.Item.Etag,
	})
	if !errors.IsCode(err, errors.CodeConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
}

func TestBlockUnblockRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	settle(t, env, "b-max")

	blocked, err := env.command.BlockItem(ctx, TransitionRequest{ID: "b-max"})
	if err != nil {
		t.Fatalf("block item: %v", err)
	}
	if blocked.Item.State != domain.StateBlocking {
		t.Fatalf("expected Blocking, got %v", blocked.Item.State)
	}
	settle(t, env, "b-max")

	unblocked, err := env.command.UnblockItem(ctx, TransitionRequest{ID: "b-max"})
	if err != nil {
		t.Fatalf("unblock item: %v", err)
	}
	if unblocked.Item.State != domain.StateUnblocking {
		t.Fatalf("expected Unblocking, got %v", unblocked.Item.State)
	}
}

func TestAnnihilateRequiresRestState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	_, err := env.command.AnnihilateItem(ctx, TransitionRequest{ID: "b-max"})
	if !errors.IsCode(err, errors.CodeItemInvalidStateTransition) {
		t.Fatalf("expected invalid transition while creating, got %v", err)
	}

	settle(t, env, "b-max")
	result, err := env.command.AnnihilateItem(ctx, TransitionRequest{ID: "b-max"})
	if err != nil {
		t.Fatalf("annihilate item: %v", err)
	}
	if result.Item.State != domain.StateAnnihilating {
		t.Fatalf("expected Annihilating, got %v", result.Item.State)
	}
}

// TestItemLifecycleScenario walks one item through create, update with a
// stale etag retry, delete, and a final read of a missing id.
func TestItemLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.command.CreateItem(ctx, CreateItemRequest{ID: "b-max", DisplayName: "Bike"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	active := settle(t, env, "b-max")

	title := "Pro Bike"
	updated, err := env.command.UpdateItem(ctx, UpdateItemRequest{
		ID:        "b-max",
		Overrides: domain.UpdateOverrides{Title: &title},
		Etag:      active.Etag,
	})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.Item.Title != "Pro Bike" {
		t.Fatalf("expected updated title, got %q", updated.Item.Title)
	}
	settle(t, env, "b-max")

	// Retrying with the etag observed at create time must conflict.
	_, err = env.command.UpdateItem(ctx, UpdateItemRequest{
		ID:        "b-max",
		Overrides: domain.UpdateOverrides{Title: &title},
		Etag:      created.Item.Etag,
	})
	if !errors.IsCode(err, errors.CodeConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}

	deleted, err := env.command.DeleteItem(ctx, TransitionRequest{ID: "b-max"})
	if err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if deleted.Item.State != domain.StateDeleting {
		t.Fatalf("expected Deleting, got %v", deleted.Item.State)
	}

	_, err = env.query.GetItem(ctx, "zzz")
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
	if meta := errors.GetMetadata(err); meta["id"] != "zzz" {
		t.Fatalf("expected id metadata, got %v", meta)
	}
}
