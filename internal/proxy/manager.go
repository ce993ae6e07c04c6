// Package proxy exposes the façade external collaborators consume: the
// failover-protected fetch, batch fetch, and the health, metrics and cache
// accessors. Persistence of the snapshots it hands out is the caller's
// concern.
package proxy

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/indexbasket/market-proxy/internal/cache"
	"github.com/indexbasket/market-proxy/internal/failover"
	"github.com/indexbasket/market-proxy/internal/health"
	"github.com/indexbasket/market-proxy/internal/metrics"
	"github.com/indexbasket/market-proxy/internal/source"
)

const defaultBatchLimit = 10

// Manager ties the record cache, the failover registry and the two trackers
// together behind one API.
type Manager struct {
	registry   *failover.Registry
	records    *cache.Cache
	health     *health.Tracker
	metrics    *metrics.Registry
	logger     *slog.Logger
	batchLimit int
}

// BatchResult is the per-instrument outcome of a batch fetch.
type BatchResult struct {
	InstrumentID string                 `json:"instrument_id"`
	Record       source.CanonicalRecord `json:"record"`
	Err          error                  `json:"-"`
}

func NewManager(registry *failover.Registry, records *cache.Cache, healthTracker *health.Tracker, metricsRegistry *metrics.Registry, logger *slog.Logger, batchLimit int) *Manager {
	if batchLimit < 1 {
		batchLimit = defaultBatchLimit
	}
	return &Manager{
		registry:   registry,
		records:    records,
		health:     healthTracker,
		metrics:    metricsRegistry,
		logger:     logger,
		batchLimit: batchLimit,
	}
}

// GetRecord is the failover-protected fetch. A cache hit skips the vendor
// chain entirely; a fresh record is cached before returning.
func (m *Manager) GetRecord(ctx context.Context, instrumentID string, ct source.ContentType) (source.CanonicalRecord, error) {
	if rec, ok := m.records.Get(instrumentID, ct); ok {
		m.logger.Debug("cache hit", slog.String("instrument", instrumentID))
		return rec, nil
	}

	rec, err := m.registry.Execute(ctx, instrumentID, ct)
	if err != nil {
		return source.CanonicalRecord{}, err
	}

	m.records.Put(instrumentID, ct, rec)
	return rec, nil
}

// GetBatch fetches many instruments with bounded concurrency. Results keep
// the input order and carry per-instrument errors; the batch itself only
// fails when the context does.
func (m *Manager) GetBatch(ctx context.Context, instrumentIDs []string, ct source.ContentType) []BatchResult {
	results := make([]BatchResult, len(instrumentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchLimit)

	for i, id := range instrumentIDs {
		g.Go(func() error {
			rec, err := m.GetRecord(gctx, id, ct)
			results[i] = BatchResult{InstrumentID: id, Record: rec, Err: err}
			return nil
		})
	}
	// Workers never return errors; they park them in their result slot.
	_ = g.Wait()

	return results
}

// Resolve lists the vendors currently able to serve a content type, in
// priority order.
func (m *Manager) Resolve(ct source.ContentType) []string {
	return m.registry.Resolve(ct)
}

// VendorHealth returns the health snapshot for one vendor.
func (m *Manager) VendorHealth(vendor string) (health.VendorHealth, bool) {
	b, exists := m.health.Lookup(vendor)
	if !exists {
		return health.VendorHealth{}, false
	}
	return b.Snapshot(), true
}

// ListVendorHealth returns health snapshots for every registered vendor.
func (m *Manager) ListVendorHealth() []health.VendorHealth {
	return m.health.Snapshots()
}

// Metrics returns the performance snapshot for one entity.
func (m *Manager) Metrics(entity string) (metrics.Snapshot, bool) {
	t, exists := m.metrics.Lookup(entity)
	if !exists {
		return metrics.Snapshot{}, false
	}
	return t.Snapshot(entity), true
}

// AllMetrics returns performance snapshots for every tracked entity.
func (m *Manager) AllMetrics() []metrics.Snapshot {
	return m.metrics.Snapshots()
}

// ResetMetrics zeroes the counters for one entity. Circuit-breaker state is
// untouched.
func (m *Manager) ResetMetrics(entity string) bool {
	return m.metrics.Reset(entity)
}

// InvalidateCache drops one cached record.
func (m *Manager) InvalidateCache(instrumentID string, ct source.ContentType) {
	m.records.Invalidate(instrumentID, ct)
}

// CacheStats reports cache effectiveness counters.
func (m *Manager) CacheStats() cache.Stats {
	return m.records.Stats()
}
