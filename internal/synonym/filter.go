package synonym

import (
	"sync/atomic"
	"time"
)

// Filter is a consumer of published snapshots. Reads are a single atomic load,
// so a Filter can be shared by concurrent analysis goroutines.
type Filter struct {
	name     string
	snapshot atomic.Pointer[Snapshot]
}

// NewFilter returns a filter seeded with snapshot.
func NewFilter(name string, snapshot *Snapshot) *Filter {
	f := &Filter{name: name}
	if snapshot == nil {
		snapshot = NewSnapshot(nil, 0, time.Time{})
	}
	f.snapshot.Store(snapshot)
	return f
}

// Name returns the name of the source the filter reads from.
func (f *Filter) Name() string {
	return f.name
}

// Update replaces the current snapshot unless it is older than the one held.
// It reports whether the snapshot was applied.
func (f *Filter) Update(snapshot *Snapshot) bool {
	if snapshot == nil {
		return false
	}
	for {
		current := f.snapshot.Load()
		if current != nil && current.Version > snapshot.Version {
			return false
		}
		if f.snapshot.CompareAndSwap(current, snapshot) {
			return true
		}
	}
}

// Snapshot returns the snapshot the filter currently reads.
func (f *Filter) Snapshot() *Snapshot {
	return f.snapshot.Load()
}

// PassThrough reports whether the filter leaves tokens untouched.
func (f *Filter) PassThrough() bool {
	return f.snapshot.Load().Empty()
}

// Lookup returns the synonyms of term. It returns nil when the filter is pass-through.
func (f *Filter) Lookup(term string) []string {
	snapshot := f.snapshot.Load()
	if snapshot.Empty() {
		return nil
	}
	return snapshot.Dictionary.Lookup(term)
}
