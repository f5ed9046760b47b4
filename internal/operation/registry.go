package operation

import (
	"sort"
	"sync"

	"github.com/plantworks/manufacturing/internal/errors"
)

// Record is the type-erased snapshot of an operation held by the registry.
// Response is a loosely-typed rendering of the payload so the registry can
// serve operations of any response type through one API surface.
type Record struct {
	ID       string
	Metadata Metadata
	Done     bool
	Response map[string]any
	Err      error
}

// Snapshot converts the operation into a registry record, rendering the
// response payload with the supplied function when the operation succeeded.
func (o *Operation[R]) Snapshot(render func(R) map[string]any) Record {
	record := Record{
		ID:       o.ID,
		Metadata: o.Metadata,
		Done:     o.Done(),
	}
	if o.Result == nil {
		return record
	}
	if o.Result.Err != nil {
		record.Err = o.Result.Err
		return record
	}
	if render != nil {
		record.Response = render(o.Result.Response)
	}
	return record
}

// Registry is an in-process store of operation records.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Put stores or replaces a record.
func (r *Registry) Put(record Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
}

// Get returns the record with the given id.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return Record{}, errors.WithMetadata(errors.CodeOperationNotFound, "operation not found", map[string]string{
			"id": id,
		})
	}
	return record, nil
}

// Delete removes the record with the given id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return errors.WithMetadata(errors.CodeOperationNotFound, "operation not found", map[string]string{
			"id": id,
		})
	}
	delete(r.records, id)
	return nil
}

// List returns all records ordered by creation time, oldest first, with id
// as the tiebreak.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(a, b int) bool {
		if !records[a].Metadata.CreateTime.Equal(records[b].Metadata.CreateTime) {
			return records[a].Metadata.CreateTime.Before(records[b].Metadata.CreateTime)
		}
		return records[a].ID < records[b].ID
	})
	return records
}
