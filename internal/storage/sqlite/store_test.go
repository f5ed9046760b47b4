package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/platform/grpc/pagination"
	"github.com/plantworks/manufacturing/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "items.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testItem(id string, state domain.State, createTime time.Time) domain.Item {
	return domain.Item{
		ID:          id,
		DisplayName: "Bike " + id,
		Title:       "Bike",
		Description: "Bike with maximum power",
		State:       state,
		Etag:        `W/"` + id + `"`,
		UID:         "uid-" + id,
		CreateTime:  createTime.UTC(),
		UpdateTime:  createTime.UTC(),
	}
}

func TestCreateAndGetItem(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	item := testItem("b-max", domain.StateCreating, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	got, err := store.GetItem(ctx, "b-max")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got != item {
		t.Fatalf("round trip mismatch: %+v != %+v", got, item)
	}
}

func TestCreateItemDuplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	item := testItem("b-max", domain.StateCreating, time.Now())

	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := store.CreateItem(ctx, item); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestGetItemNotFound(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetItem(context.Background(), "zzz"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateItemConditionalWrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	item := testItem("b-max", domain.StateActive, time.Now())
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	next := item
	next.DisplayName = "Pro Bike"
	next.State = domain.StateUpdating
	next.Etag = `W/"fresh"`
	next.UpdateTime = item.UpdateTime.Add(time.Second)

	if err := store.UpdateItem(ctx, next, item.Etag); err != nil {
		t.Fatalf("update item: %v", err)
	}

	got, err := store.GetItem(ctx, "b-max")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.DisplayName != "Pro Bike" || got.Etag != `W/"fresh"` {
		t.Fatalf("expected updated record, got %+v", got)
	}

	// Replaying the same conditional write must lose against the new etag.
	if err := store.UpdateItem(ctx, next, item.Etag); !errors.Is(err, storage.ErrEtagMismatch) {
		t.Fatalf("expected etag mismatch, got %v", err)
	}
}

func TestUpdateItemMissingRow(t *testing.T) {
	store := openTestStore(t)
	item := testItem("b-max", domain.StateActive, time.Now())

	err := store.UpdateItem(context.Background(), item, item.Etag)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	item := testItem("b-max", domain.StateAnnihilating, time.Now())
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	if err := store.DeleteItem(ctx, "b-max"); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if _, err := store.GetItem(ctx, "b-max"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.DeleteItem(ctx, "b-max"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for second delete, got %v", err)
	}
}

func TestListItemsPaginates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"b-one", "b-two", "b-three"} {
		item := testItem(id, domain.StateActive, base.Add(time.Duration(i)*time.Second))
		if err := store.CreateItem(ctx, item); err != nil {
			t.Fatalf("create item %s: %v", id, err)
		}
	}

	first, err := store.ListItems(ctx, storage.ListItemsRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Items) != 2 || first.TotalSize != 3 {
		t.Fatalf("expected 2 of 3 items, got %d of %d", len(first.Items), first.TotalSize)
	}
	if first.Items[0].ID != "b-one" || first.Items[1].ID != "b-two" {
		t.Fatalf("expected create_time order, got %s, %s", first.Items[0].ID, first.Items[1].ID)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	second, err := store.ListItems(ctx, storage.ListItemsRequest{PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != "b-three" {
		t.Fatalf("expected final item, got %+v", second.Items)
	}
	if second.NextPageToken != "" {
		t.Fatalf("expected no token on the last page, got %q", second.NextPageToken)
	}
}

func TestListItemsRejectsForeignToken(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateItem(ctx, testItem("b-max", domain.StateActive, time.Now())); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := store.CreateItem(ctx, testItem("b-two", domain.StateActive, time.Now())); err != nil {
		t.Fatalf("create item: %v", err)
	}

	page, err := store.ListItems(ctx, storage.ListItemsRequest{PageSize: 1})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}

	_, err = store.ListItems(ctx, storage.ListItemsRequest{
		PageSize:  1,
		PageToken: page.NextPageToken,
		Filter:    `state = "blocked"`,
	})
	if !errors.Is(err, storage.ErrInvalidPageToken) {
		t.Fatalf("expected invalid page token, got %v", err)
	}

	if _, err := store.ListItems(ctx, storage.ListItemsRequest{PageSize: 1, PageToken: "garbage"}); !errors.Is(err, storage.ErrInvalidPageToken) {
		t.Fatalf("expected invalid page token for garbage, got %v", err)
	}
}

func TestListItemsFiltersByState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateItem(ctx, testItem("b-max", domain.StateActive, time.Now())); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := store.CreateItem(ctx, testItem("b-two", domain.StateBlocked, time.Now())); err != nil {
		t.Fatalf("create item: %v", err)
	}

	page, err := store.ListItems(ctx, storage.ListItemsRequest{
		PageSize: 10,
		Filter:   `state = "blocked"`,
	})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "b-two" {
		t.Fatalf("expected the blocked item only, got %+v", page.Items)
	}
	if page.TotalSize != 1 {
		t.Fatalf("expected filtered total 1, got %d", page.TotalSize)
	}
}

func TestListItemsOrdersDescending(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.CreateItem(ctx, testItem("b-old", domain.StateActive, base)); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := store.CreateItem(ctx, testItem("b-new", domain.StateActive, base.Add(time.Minute))); err != nil {
		t.Fatalf("create item: %v", err)
	}

	page, err := store.ListItems(ctx, storage.ListItemsRequest{
		PageSize: 10,
		OrderBy:  pagination.OrderBy{Field: "create_time", Descending: true},
	})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if page.Items[0].ID != "b-new" || page.Items[1].ID != "b-old" {
		t.Fatalf("expected descending order, got %s, %s", page.Items[0].ID, page.Items[1].ID)
	}
}

func TestListTransitioning(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.CreateItem(ctx, testItem("b-settled", domain.StateActive, time.Now())); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := store.CreateItem(ctx, testItem("b-pending", domain.StateCreating, time.Now())); err != nil {
		t.Fatalf("create item: %v", err)
	}

	items, err := store.ListTransitioning(ctx)
	if err != nil {
		t.Fatalf("list transitioning: %v", err)
	}
	if len(items) != 1 || items[0].ID != "b-pending" {
		t.Fatalf("expected the creating item only, got %+v", items)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	store := openTestStore(t)

	pragmas := []struct {
		name string
		want string
	}{
		{name: "journal_mode", want: "wal"},
		{name: "busy_timeout", want: "5000"},
		{name: "foreign_keys", want: "1"},
	}
	for _, tc := range pragmas {
		var got string
		if err := store.sqlDB.QueryRow("PRAGMA " + tc.name).Scan(&got); err != nil {
			t.Fatalf("read pragma %s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("pragma %s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestConcurrentConditionalWritesOneWinner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	item := testItem("b-max", domain.StateActive, time.Now())
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	// Both writers condition on the same observed etag; the busy_timeout
	// pragma must keep the loser from surfacing SQLITE_BUSY.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		next := item
		next.Etag = `W/"writer-` + string(rune('a'+i)) + `"`
		go func(next domain.Item) {
			defer wg.Done()
			results <- store.UpdateItem(ctx, next, item.Etag)
		}(next)
	}
	wg.Wait()
	close(results)

	var winners, losers int
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, storage.ErrEtagMismatch):
			losers++
		default:
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("expected one winner and one etag mismatch, got %d winners, %d losers", winners, losers)
	}
}
