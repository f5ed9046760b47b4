// Package settle reconciles items out of transitional lifecycle states.
// Commands leave items in Creating, Blocking, and similar in-flight states;
// the settler periodically drives them to their rest state, and physically
// removes items marked for annihilation. Soft-deleted items stay as
// tombstones and are never revived.
package settle

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/storage"
)

// DefaultInterval is the reconcile cadence when none is configured.
const DefaultInterval = time.Second

// Settler drives transitional items to their rest states.
type Settler struct {
	store    storage.ItemStore
	interval time.Duration
	now      func() time.Time
	logf     func(format string, args ...any)
}

// New wires a settler over a store. A non-positive interval takes the
// default.
func New(store storage.ItemStore, interval time.Duration) *Settler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Settler{
		store:    store,
		interval: interval,
		now:      time.Now,
		logf:     log.Printf,
	}
}

// Run reconciles on a fixed cadence until the context is canceled.
func (s *Settler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logf("settle items: %v", err)
			}
		}
	}
}

// Reconcile performs one settling pass over all transitional items.
func (s *Settler) Reconcile(ctx context.Context) error {
	items, err := s.store.ListTransitioning(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := s.settleItem(ctx, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logf("settle item %s: %v", item.ID, err)
		}
	}
	return nil
}

func (s *Settler) settleItem(ctx context.Context, item domain.Item) error {
	switch item.State {
	case domain.StateCreating, domain.StateUpdating, domain.StateUnblocking:
		next, err := item.SettleActive(s.now)
		if err != nil {
			return err
		}
		return s.write(ctx, next, item.Etag)
	case domain.StateBlocking:
		next, err := item.SettleBlocked(s.now)
		if err != nil {
			return err
		}
		return s.write(ctx, next, item.Etag)
	case domain.StateAnnihilating:
		err := s.store.DeleteItem(ctx, item.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	default:
		// Deleting is a terminal tombstone; nothing to settle.
		return nil
	}
}

// write lands the settled state conditioned on the etag the pass observed.
// Losing the condition means another writer moved the item first; the next
// pass picks it up again if it is still transitional.
func (s *Settler) write(ctx context.Context, item domain.Item, previousEtag string) error {
	err := s.store.UpdateItem(ctx, item, previousEtag)
	if errors.Is(err, storage.ErrEtagMismatch) || errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
