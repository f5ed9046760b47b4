package domain

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of an Item.
type State int

const (
	// StateUnspecified represents an invalid state value.
	StateUnspecified State = iota
	// StateCreating indicates the item was created and has not settled yet.
	StateCreating
	// StateUpdating indicates a field update is being applied.
	StateUpdating
	// StateDeleting marks the item as soft-deleted.
	StateDeleting
	// StateAnnihilating marks the item for irreversible physical removal.
	StateAnnihilating
	// StateBlocking indicates the item is on its way to Blocked.
	StateBlocking
	// StateUnblocking indicates the item is on its way back to Active.
	StateUnblocking
	// StateActive is the rest state for a usable item.
	StateActive
	// StateBlocked is the rest state for an administratively blocked item.
	StateBlocked
)

var stateNames = map[State]string{
	StateCreating:     "creating",
	StateUpdating:     "updating",
	StateDeleting:     "deleting",
	StateAnnihilating: "annihilating",
	StateBlocking:     "blocking",
	StateUnblocking:   "unblocking",
	StateActive:       "active",
	StateBlocked:      "blocked",
}

// String returns the lowercase state name, or empty for unspecified.
func (s State) String() string {
	return stateNames[s]
}

// IsTransitioning reports whether the state is a transitional state, during
// which no further commands may be applied.
func (s State) IsTransitioning() bool {
	switch s {
	case StateCreating, StateUpdating, StateDeleting, StateAnnihilating, StateBlocking, StateUnblocking:
		return true
	default:
		return false
	}
}

// ParseState converts a stored state name back to a State.
func ParseState(raw string) (State, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	for state, name := range stateNames {
		if raw == name {
			return state, nil
		}
	}
	return StateUnspecified, fmt.Errorf("invalid item state %q", raw)
}
