package metrics

import (
	"sort"
	"sync"
)

// Registry holds one Tracker per entity, created lazily on first use.
type Registry struct {
	mutex    sync.RWMutex
	trackers map[string]*Tracker
}

func NewRegistry() *Registry {
	return &Registry{
		trackers: make(map[string]*Tracker),
	}
}

// Get returns the tracker for an entity, creating it if needed.
func (r *Registry) Get(entity string) *Tracker {
	r.mutex.RLock()
	t, exists := r.trackers[entity]
	r.mutex.RUnlock()

	if exists {
		return t
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if t, exists = r.trackers[entity]; exists {
		return t
	}

	t = &Tracker{}
	r.trackers[entity] = t
	return t
}

// Lookup returns the tracker for an entity without creating one.
func (r *Registry) Lookup(entity string) (*Tracker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	t, exists := r.trackers[entity]
	return t, exists
}

// Reset zeroes the tracker for an entity. Returns false if the entity is
// unknown.
func (r *Registry) Reset(entity string) bool {
	t, exists := r.Lookup(entity)
	if !exists {
		return false
	}
	t.Reset()
	return true
}

// Snapshots returns a snapshot per registered entity, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snaps := make([]Snapshot, 0, len(r.trackers))
	for entity, t := range r.trackers {
		snaps = append(snaps, t.Snapshot(entity))
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Entity < snaps[j].Entity
	})
	return snaps
}
