// Package consumer tracks the filters that receive published snapshots.
package consumer

import (
	"errors"
	"sync"
	"weak"

	"github.com/at-ishikawa/dynsyn/internal/synonym"
)

// ErrNilFilter is returned when a nil filter is registered.
var ErrNilFilter = errors.New("consumer: nil filter")

// Handle identifies a registration.
type Handle uint64

// Registry holds weak references to filters. It never keeps a filter alive:
// entries whose filter was garbage collected are pruned on the next Publish or Prune.
type Registry struct {
	mu      sync.Mutex
	next    Handle
	entries map[Handle]weak.Pointer[synonym.Filter]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]weak.Pointer[synonym.Filter])}
}

// Register starts delivering snapshots to f.
func (r *Registry) Register(f *synonym.Filter) (Handle, error) {
	if f == nil {
		return 0, ErrNilFilter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries[r.next] = weak.Make(f)
	return r.next, nil
}

// Unregister stops delivering snapshots for h. It reports whether h was registered.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[h]
	delete(r.entries, h)
	return ok
}

// Publish delivers snapshot to every live filter and returns how many accepted it.
func (r *Registry) Publish(snapshot *synonym.Snapshot) int {
	delivered := 0
	for _, f := range r.live() {
		if f.Update(snapshot) {
			delivered++
		}
	}
	return delivered
}

// Prune drops entries whose filter was collected and returns how many were dropped.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked()
}

// Len returns the number of entries, including filters not yet pruned.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// live prunes dead entries and returns strong references to the rest.
// Delivery happens outside the lock so registration is never blocked by it.
func (r *Registry) live() []*synonym.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	filters := make([]*synonym.Filter, 0, len(r.entries))
	for h, p := range r.entries {
		f := p.Value()
		if f == nil {
			delete(r.entries, h)
			continue
		}
		filters = append(filters, f)
	}
	return filters
}

func (r *Registry) pruneLocked() int {
	pruned := 0
	for h, p := range r.entries {
		if p.Value() == nil {
			delete(r.entries, h)
			pruned++
		}
	}
	return pruned
}
