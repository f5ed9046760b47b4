// Package operation provides the long-running operation envelope returned
// by item commands, plus an in-process registry the Operations API reads
// from. Commands here complete synchronously, so operations are stored
// already done; the envelope still separates metadata from result so
// callers can poll the same way they would poll a slow backend.
package operation

import (
	"fmt"
	"time"

	"github.com/plantworks/manufacturing/internal/platform/id"
)

// Metadata describes the command a mutation operation is carrying out.
// Item is the loosely-typed post-transition snapshot of the entity the
// command produced, fixed when the operation is created.
type Metadata struct {
	ItemID     string
	Verb       string
	CreateTime time.Time
	Item       map[string]any
}

// Result holds the terminal outcome of an operation. Exactly one of
// Response or Err is set.
type Result[R any] struct {
	Response R
	Err      error
}

// Operation is a long-running operation envelope over a mutation. R is the
// response payload type produced on success.
type Operation[R any] struct {
	ID       string
	Metadata Metadata
	Result   *Result[R]
}

// New returns a pending operation with a generated id.
func New[R any](metadata Metadata) (*Operation[R], error) {
	opID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate operation id: %w", err)
	}
	return &Operation[R]{ID: opID, Metadata: metadata}, nil
}

// Done reports whether the operation reached a terminal result.
func (o *Operation[R]) Done() bool {
	return o.Result != nil
}

// Succeed records a successful response.
func (o *Operation[R]) Succeed(response R) {
	o.Result = &Result[R]{Response: response}
}

// Fail records a terminal error.
func (o *Operation[R]) Fail(err error) {
	o.Result = &Result[R]{Err: err}
}
