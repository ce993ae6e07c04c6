package health

import (
	"math"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateClosed   State = iota // Serving
	StateOpen                  // Suppressed
	StateHalfOpen              // Single trial probe in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// minRateSamples is the number of recorded attempts required before the
// error-rate condition may open a circuit; below it only the
// consecutive-failure threshold applies.
const minRateSamples = 10

// Config carries the circuit-breaker thresholds for one vendor.
// Zero fields fall back to the defaults.
type Config struct {
	FailureThreshold uint32        // consecutive failures that open the circuit (default 5)
	ErrorRateCeiling float64       // rolling error rate that opens the circuit (default 0.5)
	Cooldown         time.Duration // OPEN -> HALF_OPEN delay (default 30s)
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.ErrorRateCeiling == 0 {
		c.ErrorRateCeiling = 0.5
	}
	if c.Cooldown == 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker is the circuit breaker for a single vendor. The zero value is not
// usable; construct through a Tracker.
type Breaker struct {
	vendor string
	config Config

	// cell packs the state (upper 32 bits) and the consecutive-failure
	// count (lower 32 bits). Every transition is one CAS on this cell.
	cell atomic.Uint64

	openedAt atomic.Int64  // unix nanos of the last CLOSED/HALF_OPEN -> OPEN edge
	lastBeat atomic.Int64  // unix nanos of the last heartbeat
	lastRate atomic.Uint64 // float64 bits of the last reported error rate
	lastErr  atomic.Pointer[string]
}

// VendorHealth is a point-in-time view of one vendor's breaker.
type VendorHealth struct {
	Vendor              string    `json:"vendor"`
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	ErrorRate           float64   `json:"error_rate"`
	LastHeartbeat       time.Time `json:"last_heartbeat"`
	LastError           string    `json:"last_error,omitempty"`
}

func newBreaker(vendor string, config Config) *Breaker {
	return &Breaker{
		vendor: vendor,
		config: config.withDefaults(),
	}
}

func pack(s State, failures uint32) uint64 {
	return uint64(uint32(s))<<32 | uint64(failures)
}

func unpack(c uint64) (State, uint32) {
	return State(int32(c >> 32)), uint32(c)
}

// Allow reports whether a call may go to this vendor right now. When the
// circuit is OPEN and the cooldown has elapsed, the caller winning the CAS
// gets probe=true and is the single HALF-OPEN trial; concurrent callers see
// ok=false and should fail over to the next vendor.
func (b *Breaker) Allow() (ok bool, probe bool) {
	for {
		c := b.cell.Load()
		state, failures := unpack(c)

		switch state {
		case StateClosed:
			return true, false

		case StateHalfOpen:
			// A probe is already in flight.
			return false, false

		case StateOpen:
			opened := time.Unix(0, b.openedAt.Load())
			if time.Since(opened) < b.config.Cooldown {
				return false, false
			}
			if b.cell.CompareAndSwap(c, pack(StateHalfOpen, failures)) {
				return true, true
			}
			// Lost the transition race; re-read and decide again.
		}
	}
}

// RecordSuccess reports a successful call. It closes the circuit from
// HALF-OPEN and resets the consecutive-failure count.
func (b *Breaker) RecordSuccess() {
	for {
		c := b.cell.Load()
		state, _ := unpack(c)

		// A success cannot arrive while OPEN: nothing was allowed through.
		if state == StateOpen {
			return
		}
		if b.cell.CompareAndSwap(c, pack(StateClosed, 0)) {
			return
		}
	}
}

// RecordFailure reports a failed or timed-out call together with the
// vendor's rolling error rate over the current metrics window and the
// number of samples behind it. It opens the circuit when the consecutive
// failures reach the threshold, when the error rate exceeds the ceiling
// with enough samples, or when the HALF-OPEN probe fails.
func (b *Breaker) RecordFailure(errorRate float64, samples int64, lastErr string) {
	b.lastRate.Store(math.Float64bits(errorRate))
	if lastErr != "" {
		b.lastErr.Store(&lastErr)
	}

	for {
		c := b.cell.Load()
		state, failures := unpack(c)
		next := failures + 1

		switch state {
		case StateHalfOpen:
			// Failed probe: reopen and restart the cooldown.
			if b.cell.CompareAndSwap(c, pack(StateOpen, next)) {
				b.openedAt.Store(time.Now().UnixNano())
				return
			}

		case StateOpen:
			if b.cell.CompareAndSwap(c, pack(StateOpen, next)) {
				return
			}

		case StateClosed:
			trip := next >= b.config.FailureThreshold ||
				(samples >= minRateSamples && errorRate > b.config.ErrorRateCeiling)
			if !trip {
				if b.cell.CompareAndSwap(c, pack(StateClosed, next)) {
					return
				}
				continue
			}
			if b.cell.CompareAndSwap(c, pack(StateOpen, next)) {
				b.openedAt.Store(time.Now().UnixNano())
				return
			}
		}
	}
}

// Heartbeat stamps the vendor's last liveness signal.
func (b *Breaker) Heartbeat() {
	b.lastBeat.Store(time.Now().UnixNano())
}

// Eligible reports whether a request could currently be routed to this
// vendor: the circuit is CLOSED, or OPEN with the cooldown elapsed so the
// next Allow would grant a probe. It is a read-only view and never consumes
// the probe slot.
func (b *Breaker) Eligible() bool {
	state, _ := unpack(b.cell.Load())
	switch state {
	case StateClosed:
		return true
	case StateOpen:
		opened := time.Unix(0, b.openedAt.Load())
		return time.Since(opened) >= b.config.Cooldown
	default:
		return false
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	s, _ := unpack(b.cell.Load())
	return s
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (b *Breaker) ConsecutiveFailures() uint32 {
	_, f := unpack(b.cell.Load())
	return f
}

// Snapshot returns a point-in-time view of the breaker.
func (b *Breaker) Snapshot() VendorHealth {
	state, failures := unpack(b.cell.Load())

	var beat time.Time
	if ns := b.lastBeat.Load(); ns != 0 {
		beat = time.Unix(0, ns)
	}

	var lastErr string
	if p := b.lastErr.Load(); p != nil {
		lastErr = *p
	}

	return VendorHealth{
		Vendor:              b.vendor,
		State:               state.String(),
		ConsecutiveFailures: failures,
		ErrorRate:           math.Float64frombits(b.lastRate.Load()),
		LastHeartbeat:       beat,
		LastError:           lastErr,
	}
}
