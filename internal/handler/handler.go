// Package handler serves the proxy manager's accessors as a thin JSON API.
// It owns no logic of its own: every endpoint reads from or delegates to
// the manager.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/indexbasket/market-proxy/internal/proxy"
	"github.com/indexbasket/market-proxy/internal/source"
)

type ProxyHandler struct {
	logger  *slog.Logger
	manager *proxy.Manager
}

func NewProxyHandler(logger *slog.Logger, manager *proxy.Manager) *ProxyHandler {
	return &ProxyHandler{
		logger:  logger,
		manager: manager,
	}
}

// GetRecord handles GET /api/v1/record?instrument=..&type=..
func (h *ProxyHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		http.Error(w, "instrument is required", http.StatusBadRequest)
		return
	}
	ct := contentType(r)

	rec, err := h.manager.GetRecord(r.Context(), instrument, ct)
	if err != nil {
		h.writeFetchError(w, instrument, err)
		return
	}

	writeJSON(w, rec)
}

// GetBatch handles GET /api/v1/records?instruments=a,b,c&type=..
func (h *ProxyHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("instruments")
	if raw == "" {
		http.Error(w, "instruments is required", http.StatusBadRequest)
		return
	}

	var instruments []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			instruments = append(instruments, id)
		}
	}

	results := h.manager.GetBatch(r.Context(), instruments, contentType(r))

	type batchEntry struct {
		InstrumentID string                  `json:"instrument_id"`
		Record       *source.CanonicalRecord `json:"record,omitempty"`
		Error        string                  `json:"error,omitempty"`
	}

	out := make([]batchEntry, 0, len(results))
	for _, res := range results {
		entry := batchEntry{InstrumentID: res.InstrumentID}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		} else {
			rec := res.Record
			entry.Record = &rec
		}
		out = append(out, entry)
	}

	writeJSON(w, out)
}

// ListVendorHealth handles GET /api/v1/vendors/health
func (h *ProxyHandler) ListVendorHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.manager.ListVendorHealth())
}

// GetVendorHealth handles GET /api/v1/vendors/health/{vendor}
func (h *ProxyHandler) GetVendorHealth(w http.ResponseWriter, r *http.Request) {
	vendor := r.PathValue("vendor")

	snap, exists := h.manager.VendorHealth(vendor)
	if !exists {
		http.Error(w, "unknown vendor", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

// ListMetrics handles GET /api/v1/metrics
func (h *ProxyHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.manager.AllMetrics())
}

// GetMetrics handles GET /api/v1/metrics/{entity}
func (h *ProxyHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")

	snap, exists := h.manager.Metrics(entity)
	if !exists {
		http.Error(w, "unknown entity", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

// ResetMetrics handles POST /api/v1/metrics/{entity}/reset
func (h *ProxyHandler) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")

	if !h.manager.ResetMetrics(entity) {
		http.Error(w, "unknown entity", http.StatusNotFound)
		return
	}

	h.logger.Info("metrics reset", slog.String("entity", entity))
	w.WriteHeader(http.StatusNoContent)
}

// ResolveVendors handles GET /api/v1/vendors?type=..
func (h *ProxyHandler) ResolveVendors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"content_type": contentType(r),
		"vendors":      h.manager.Resolve(contentType(r)),
	})
}

// CacheStats handles GET /api/v1/cache/stats
func (h *ProxyHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.manager.CacheStats())
}

// InvalidateCache handles DELETE /api/v1/cache?instrument=..&type=..
func (h *ProxyHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		http.Error(w, "instrument is required", http.StatusBadRequest)
		return
	}

	h.manager.InvalidateCache(instrument, contentType(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProxyHandler) writeFetchError(w http.ResponseWriter, instrument string, err error) {
	var exhausted *source.ExhaustedError

	switch {
	case errors.Is(err, source.ErrRequestDeadlineExceeded):
		h.logger.Warn("request deadline exceeded", slog.String("instrument", instrument))
		http.Error(w, err.Error(), http.StatusGatewayTimeout)

	case errors.As(err, &exhausted):
		h.logger.Warn("no vendor could serve request",
			slog.String("instrument", instrument),
			slog.Int("attempts", len(exhausted.Attempts)))
		http.Error(w, err.Error(), http.StatusBadGateway)

	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func contentType(r *http.Request) source.ContentType {
	if t := r.URL.Query().Get("type"); t != "" {
		return source.ContentType(strings.ToUpper(t))
	}
	return source.TypeEquity
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
