package health

import (
	"sort"
	"sync"
)

// Tracker holds one Breaker per vendor. Breakers are created on first
// registration and never removed while the vendor stays registered.
type Tracker struct {
	mutex    sync.RWMutex
	breakers map[string]*Breaker
	defaults Config
}

func NewTracker(defaults Config) *Tracker {
	return &Tracker{
		breakers: make(map[string]*Breaker),
		defaults: defaults.withDefaults(),
	}
}

// Register creates the breaker for a vendor with its own thresholds.
// Re-registering an existing vendor keeps the original breaker and its
// state.
func (t *Tracker) Register(vendor string, config Config) *Breaker {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if b, exists := t.breakers[vendor]; exists {
		return b
	}

	b := newBreaker(vendor, config)
	t.breakers[vendor] = b
	return b
}

// Get returns the breaker for a vendor, creating one with the tracker
// defaults for vendors never explicitly registered.
func (t *Tracker) Get(vendor string) *Breaker {
	t.mutex.RLock()
	b, exists := t.breakers[vendor]
	t.mutex.RUnlock()

	if exists {
		return b
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if b, exists = t.breakers[vendor]; exists {
		return b
	}

	b = newBreaker(vendor, t.defaults)
	t.breakers[vendor] = b
	return b
}

// Lookup returns the breaker for a vendor without creating one.
func (t *Tracker) Lookup(vendor string) (*Breaker, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	b, exists := t.breakers[vendor]
	return b, exists
}

// Snapshots returns the health view of every registered vendor, sorted by
// name.
func (t *Tracker) Snapshots() []VendorHealth {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	snaps := make([]VendorHealth, 0, len(t.breakers))
	for _, b := range t.breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Vendor < snaps[j].Vendor
	})
	return snaps
}
