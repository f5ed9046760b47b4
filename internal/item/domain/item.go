// Package domain holds the Item entity and its lifecycle state machine.
// Transitions are pure: each one returns a rebuilt snapshot with a fresh
// etag and update time, leaving the prior value untouched.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plantworks/manufacturing/internal/errors"
)

// Item represents metadata for a manufacturing item.
type Item struct {
	ID          string
	DisplayName string
	Title       string
	Description string
	State       State
	Etag        string
	UID         string
	CreateTime  time.Time
	UpdateTime  time.Time
}

// CreateInput describes the fields needed to create an item.
// ID must already be validated or generated by the caller.
type CreateInput struct {
	ID          string
	DisplayName string
	Title       string
	Description string
}

// UpdateOverrides carries the optional field overrides of an update.
// Nil fields retain their previous value.
type UpdateOverrides struct {
	DisplayName *string
	Title       *string
	Description *string
}

// Create builds a new item in the Creating state with a fresh uid and etag.
func Create(input CreateInput, now func() time.Time, uidGenerator func() (string, error)) (Item, error) {
	if now == nil {
		now = time.Now
	}
	if uidGenerator == nil {
		uidGenerator = newUID
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return Item{}, errors.WithMetadata(errors.CodeItemFieldEmpty, "display name is required", map[string]string{
			"field": "display_name",
		})
	}

	uid, err := uidGenerator()
	if err != nil {
		return Item{}, fmt.Errorf("generate item uid: %w", err)
	}
	etag, err := NewEtag()
	if err != nil {
		return Item{}, err
	}

	createTime := now().UTC()
	return Item{
		ID:          input.ID,
		DisplayName: displayName,
		Title:       input.Title,
		Description: input.Description,
		State:       StateCreating,
		Etag:        etag,
		UID:         uid,
		CreateTime:  createTime,
		UpdateTime:  createTime,
	}, nil
}

// Update rebuilds the item with the supplied overrides in the Updating state.
func (i Item) Update(overrides UpdateOverrides, now func() time.Time) (Item, error) {
	if err := i.commandable("update"); err != nil {
		return Item{}, err
	}

	next := i
	if overrides.DisplayName != nil {
		displayName := strings.TrimSpace(*overrides.DisplayName)
		if displayName == "" {
			return Item{}, errors.WithMetadata(errors.CodeItemFieldEmpty, "display name cannot be cleared", map[string]string{
				"field": "display_name",
			})
		}
		next.DisplayName = displayName
	}
	if overrides.Title != nil {
		next.Title = *overrides.Title
	}
	if overrides.Description != nil {
		next.Description = *overrides.Description
	}

	return next.transitioned(StateUpdating, now)
}

// Delete marks the item as soft-deleted.
func (i Item) Delete(now func() time.Time) (Item, error) {
	if err := i.commandable("delete"); err != nil {
		return Item{}, err
	}
	return i.transitioned(StateDeleting, now)
}

// Annihilate marks the item for irreversible physical removal.
func (i Item) Annihilate(now func() time.Time) (Item, error) {
	if err := i.commandable("annihilate"); err != nil {
		return Item{}, err
	}
	return i.transitioned(StateAnnihilating, now)
}

// Block starts blocking an active item.
func (i Item) Block(now func() time.Time) (Item, error) {
	if err := i.commandable("block"); err != nil {
		return Item{}, err
	}
	if i.State == StateBlocked {
		return Item{}, i.invalidTransition("block")
	}
	return i.transitioned(StateBlocking, now)
}

// Unblock starts unblocking a blocked item.
func (i Item) Unblock(now func() time.Time) (Item, error) {
	if err := i.commandable("unblock"); err != nil {
		return Item{}, err
	}
	if i.State == StateActive {
		return Item{}, i.invalidTransition("unblock")
	}
	return i.transitioned(StateUnblocking, now)
}

// SettleActive settles a Creating, Updating, or Unblocking item to Active.
func (i Item) SettleActive(now func() time.Time) (Item, error) {
	switch i.State {
	case StateCreating, StateUpdating, StateUnblocking:
		return i.transitioned(StateActive, now)
	default:
		return Item{}, i.invalidTransition("settle")
	}
}

// SettleBlocked settles a Blocking item to Blocked.
func (i Item) SettleBlocked(now func() time.Time) (Item, error) {
	if i.State != StateBlocking {
		return Item{}, i.invalidTransition("settle")
	}
	return i.transitioned(StateBlocked, now)
}

// commandable rejects commands while a previous transition is in flight.
func (i Item) commandable(operation string) error {
	if i.State.IsTransitioning() {
		return i.invalidTransition(operation)
	}
	return nil
}

func (i Item) invalidTransition(operation string) error {
	return errors.WithMetadata(
		errors.CodeItemInvalidStateTransition,
		fmt.Sprintf("item state %q does not allow %s", i.State, operation),
		map[string]string{
			"id":        i.ID,
			"state":     i.State.String(),
			"operation": operation,
		},
	)
}

// transitioned rebuilds the full snapshot in the target state with a fresh
// etag and a refreshed update time.
func (i Item) transitioned(state State, now func() time.Time) (Item, error) {
	if now == nil {
		now = time.Now
	}
	etag, err := NewEtag()
	if err != nil {
		return Item{}, err
	}

	next := i
	next.State = state
	next.Etag = etag
	next.UpdateTime = now().UTC()
	return next, nil
}

func newUID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return u.String(), nil
}
