package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/indexbasket/market-proxy/internal/health"
	"github.com/indexbasket/market-proxy/internal/metrics"
	"github.com/indexbasket/market-proxy/internal/source"
)

// Descriptor declares one vendor adapter to the registry.
type Descriptor struct {
	Vendor       string
	Priority     int // lower value wins
	ContentTypes []source.ContentType
	Adapter      source.Adapter

	Timeout   time.Duration // per-source deadline, nested inside the request deadline
	RateLimit float64       // requests per second, 0 disables limiting
	Burst     int
}

type entry struct {
	desc    Descriptor
	call    *instrumented
	breaker *health.Breaker
}

// Registry holds the registered adapters sorted by static priority and
// drives the failover sequence for each request.
type Registry struct {
	mutex          sync.RWMutex
	entries        []*entry
	health         *health.Tracker
	metrics        *metrics.Registry
	logger         *slog.Logger
	requestTimeout time.Duration
}

// NewRegistry creates a registry. requestTimeout bounds a whole Execute
// sequence when the caller's context carries no deadline of its own.
func NewRegistry(healthTracker *health.Tracker, metricsRegistry *metrics.Registry, logger *slog.Logger, requestTimeout time.Duration) *Registry {
	return &Registry{
		health:         healthTracker,
		metrics:        metricsRegistry,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
}

// Register adds a vendor adapter with its circuit-breaker thresholds.
// The adapter is wrapped for mandatory outcome reporting.
func (r *Registry) Register(desc Descriptor, breakerConfig health.Config) error {
	switch {
	case desc.Vendor == "":
		return errors.New("failover: descriptor needs a vendor name")
	case desc.Adapter == nil:
		return fmt.Errorf("failover: %s: descriptor needs an adapter", desc.Vendor)
	case desc.Priority < 1:
		return fmt.Errorf("failover: %s: priority must be at least 1", desc.Vendor)
	case len(desc.ContentTypes) == 0:
		return fmt.Errorf("failover: %s: descriptor needs at least one content type", desc.Vendor)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, e := range r.entries {
		if e.desc.Vendor == desc.Vendor {
			return fmt.Errorf("failover: vendor %s already registered", desc.Vendor)
		}
	}

	breaker := r.health.Register(desc.Vendor, breakerConfig)

	var limiter *rate.Limiter
	if desc.RateLimit > 0 {
		burst := desc.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(desc.RateLimit), burst)
	}

	r.entries = append(r.entries, &entry{
		desc:    desc,
		breaker: breaker,
		call: &instrumented{
			adapter: desc.Adapter,
			vendor:  desc.Vendor,
			timeout: desc.Timeout,
			limiter: limiter,
			breaker: breaker,
			tracker: r.metrics.Get(desc.Vendor),
			logger:  r.logger,
		},
	})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].desc.Priority < r.entries[j].desc.Priority
	})

	r.logger.Info("registered vendor adapter",
		slog.String("vendor", desc.Vendor),
		slog.Int("priority", desc.Priority))
	return nil
}

// Resolve returns the vendors that could serve a content type right now, in
// priority order: supported type, and a circuit that is CLOSED or past its
// cooldown. It never consumes the HALF-OPEN probe slot; Execute claims that
// at attempt time.
func (r *Registry) Resolve(ct source.ContentType) []string {
	var vendors []string
	for _, e := range r.candidates(ct) {
		if e.breaker.Eligible() {
			vendors = append(vendors, e.desc.Vendor)
		}
	}
	return vendors
}

// Execute fetches one instrument, failing over through the candidates in
// priority order. Per-attempt errors are absorbed; the caller sees either a
// record, an *source.ExhaustedError, or source.ErrRequestDeadlineExceeded.
func (r *Registry) Execute(ctx context.Context, instrumentID string, ct source.ContentType) (source.CanonicalRecord, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.requestTimeout)
		defer cancel()
	}

	var attempts []source.AttemptError

	for _, e := range r.candidates(ct) {
		if ctx.Err() != nil {
			return source.CanonicalRecord{}, fmt.Errorf("%v: %w", ctx.Err(), source.ErrRequestDeadlineExceeded)
		}

		ok, probe := e.breaker.Allow()
		if !ok {
			// Suppressed vendor: listed for diagnostics, no attempt recorded.
			attempts = append(attempts, source.AttemptError{
				Vendor: e.desc.Vendor,
				Err:    fmt.Errorf("circuit %s: %w", e.breaker.State(), source.ErrSourceUnavailable),
			})
			continue
		}
		if probe {
			r.logger.Info("routing recovery probe",
				slog.String("vendor", e.desc.Vendor),
				slog.String("instrument", instrumentID))
		}

		rec, err := e.call.fetch(ctx, instrumentID)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, source.ErrRequestDeadlineExceeded) {
			return source.CanonicalRecord{}, err
		}

		attempts = append(attempts, source.AttemptError{Vendor: e.desc.Vendor, Err: err})
	}

	r.logger.Warn("all sources exhausted",
		slog.String("instrument", instrumentID),
		slog.String("content_type", string(ct)),
		slog.Int("attempts", len(attempts)))

	return source.CanonicalRecord{}, &source.ExhaustedError{
		InstrumentID: instrumentID,
		ContentType:  ct,
		Attempts:     attempts,
	}
}

// candidates returns the priority-ordered entries supporting a content type.
func (r *Registry) candidates(ct source.ContentType) []*entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	matched := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if source.Supports(e.desc.ContentTypes, ct) {
			matched = append(matched, e)
		}
	}
	return matched
}

// Vendors returns the registered vendor names in priority order.
func (r *Registry) Vendors() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.desc.Vendor)
	}
	return names
}
