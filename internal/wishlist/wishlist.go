// Package wishlist is the thread-safe registry of monitoring targets (C8):
// a mutable set keyed by teachingClassId, protected by a single coarse lock
// per spec.md §4.9 and design note "fine-grained locking is unnecessary at
// this scale" — grounded on the same single-mutex shape the teacher uses for
// its own login-state guard, generalized from one struct's fields to a
// whole set of entries.
package wishlist

import (
	"sync"

	"github.com/xkmonitor/core/internal/models"
)

// Registry is the wishlist (C8). Zero value is not usable; use New.
type Registry struct {
	mu      sync.Mutex
	entries map[string]models.WishlistEntry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]models.WishlistEntry)}
}

// Add inserts entry, a no-op if teachingClassId is already present (I1:
// unique by teachingClassId).
func (r *Registry) Add(entry models.WishlistEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := entry.ID()
	if _, exists := r.entries[id]; exists {
		return
	}
	r.entries[id] = entry
}

// Remove deletes the entry keyed by id, if present.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Contains reports whether id is currently in the wishlist — used by a
// monitor's step-1 "still in the wishlist?" check (spec.md §4.5).
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Snapshot returns a shallow copy of the current entries, safe to range over
// outside the lock (spec.md R2: "snapshot-under-lock then iterate outside").
func (r *Registry) Snapshot() []models.WishlistEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WishlistEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out
}

// Len returns the current entry count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Empty reports whether the wishlist currently has no entries, used by the
// scheduler's supervisor loop exit condition (spec.md §4.10).
func (r *Registry) Empty() bool {
	return r.Len() == 0
}
