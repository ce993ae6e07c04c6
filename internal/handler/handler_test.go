package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/indexbasket/market-proxy/internal/cache"
	"github.com/indexbasket/market-proxy/internal/failover"
	"github.com/indexbasket/market-proxy/internal/handler"
	"github.com/indexbasket/market-proxy/internal/health"
	"github.com/indexbasket/market-proxy/internal/metrics"
	"github.com/indexbasket/market-proxy/internal/proxy"
	"github.com/indexbasket/market-proxy/internal/source"
	"github.com/indexbasket/market-proxy/internal/vendors/sim"
)

var _ = Describe("ProxyHandler", func() {
	var (
		mux       *http.ServeMux
		primary   *sim.Feed
		secondary *sim.Feed
	)

	do := func(method, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))

		healthTracker := health.NewTracker(health.Config{})
		metricsRegistry := metrics.NewRegistry()
		registry := failover.NewRegistry(healthTracker, metricsRegistry, log, 2*time.Second)

		primary = sim.NewFeed("BLOOMBERG", sim.Config{Seed: 1})
		secondary = sim.NewFeed("REFINITIV", sim.Config{Seed: 2})

		breakerConfig := health.Config{FailureThreshold: 3, Cooldown: time.Minute}
		Expect(registry.Register(failover.Descriptor{
			Vendor:       "BLOOMBERG",
			Priority:     1,
			ContentTypes: []source.ContentType{source.TypeEquity, source.TypeIndex},
			Adapter:      primary,
		}, breakerConfig)).To(Succeed())
		Expect(registry.Register(failover.Descriptor{
			Vendor:       "REFINITIV",
			Priority:     2,
			ContentTypes: []source.ContentType{source.TypeEquity},
			Adapter:      secondary,
		}, breakerConfig)).To(Succeed())

		manager := proxy.NewManager(registry, cache.New(time.Minute, 100), healthTracker, metricsRegistry, log, 4)
		h := handler.NewProxyHandler(log, manager)

		mux = http.NewServeMux()
		mux.HandleFunc("GET /api/v1/record", h.GetRecord)
		mux.HandleFunc("GET /api/v1/records", h.GetBatch)
		mux.HandleFunc("GET /api/v1/vendors", h.ResolveVendors)
		mux.HandleFunc("GET /api/v1/vendors/health", h.ListVendorHealth)
		mux.HandleFunc("GET /api/v1/vendors/health/{vendor}", h.GetVendorHealth)
		mux.HandleFunc("GET /api/v1/metrics", h.ListMetrics)
		mux.HandleFunc("GET /api/v1/metrics/{entity}", h.GetMetrics)
		mux.HandleFunc("POST /api/v1/metrics/{entity}/reset", h.ResetMetrics)
		mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
		mux.HandleFunc("DELETE /api/v1/cache", h.InvalidateCache)
	})

	Describe("GET /api/v1/record", func() {
		It("should return a canonical record", func() {
			rec := do(http.MethodGet, "/api/v1/record?instrument=AAPL&type=EQUITY")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var body source.CanonicalRecord
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.InstrumentID).To(Equal("AAPL"))
			Expect(body.Source).To(Equal("BLOOMBERG"))
		})

		It("should default the content type to EQUITY", func() {
			rec := do(http.MethodGet, "/api/v1/record?instrument=AAPL")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should accept a lowercase content type", func() {
			rec := do(http.MethodGet, "/api/v1/record?instrument=SPX&type=index")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should reject a missing instrument", func() {
			rec := do(http.MethodGet, "/api/v1/record")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should answer 502 when every vendor fails", func() {
			primary.SetDown(true)
			secondary.SetDown(true)

			rec := do(http.MethodGet, "/api/v1/record?instrument=AAPL")
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
		})

		It("should answer 502 when no vendor serves the type", func() {
			rec := do(http.MethodGet, "/api/v1/record?instrument=EURUSD&type=FX")
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("GET /api/v1/records", func() {
		It("should return one entry per instrument in order", func() {
			rec := do(http.MethodGet, "/api/v1/records?instruments=AAPL,MSFT,GOOG")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body []struct {
				InstrumentID string `json:"instrument_id"`
				Error        string `json:"error"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveLen(3))
			Expect(body[0].InstrumentID).To(Equal("AAPL"))
			Expect(body[2].InstrumentID).To(Equal("GOOG"))
		})

		It("should carry per-instrument errors in the body", func() {
			primary.SetDown(true)
			secondary.SetDown(true)

			rec := do(http.MethodGet, "/api/v1/records?instruments=AAPL")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body []struct {
				Error string `json:"error"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body[0].Error).NotTo(BeEmpty())
		})

		It("should reject a missing instrument list", func() {
			rec := do(http.MethodGet, "/api/v1/records")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/v1/vendors", func() {
		It("should list vendors serving a content type", func() {
			rec := do(http.MethodGet, "/api/v1/vendors?type=INDEX")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body struct {
				ContentType string   `json:"content_type"`
				Vendors     []string `json:"vendors"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.ContentType).To(Equal("INDEX"))
			Expect(body.Vendors).To(Equal([]string{"BLOOMBERG"}))
		})
	})

	Describe("Vendor health endpoints", func() {
		It("should list health for every vendor", func() {
			rec := do(http.MethodGet, "/api/v1/vendors/health")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body []health.VendorHealth
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveLen(2))
		})

		It("should return one vendor's health", func() {
			rec := do(http.MethodGet, "/api/v1/vendors/health/BLOOMBERG")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body health.VendorHealth
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Vendor).To(Equal("BLOOMBERG"))
			Expect(body.State).To(Equal("CLOSED"))
		})

		It("should answer 404 for an unknown vendor", func() {
			rec := do(http.MethodGet, "/api/v1/vendors/health/NOPE")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Metrics endpoints", func() {
		BeforeEach(func() {
			Expect(do(http.MethodGet, "/api/v1/record?instrument=AAPL").Code).To(Equal(http.StatusOK))
		})

		It("should list metrics for every entity", func() {
			rec := do(http.MethodGet, "/api/v1/metrics")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body []metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).NotTo(BeEmpty())
		})

		It("should return one entity's metrics", func() {
			rec := do(http.MethodGet, "/api/v1/metrics/BLOOMBERG")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Succeeded).To(Equal(int64(1)))
		})

		It("should answer 404 for an unknown entity", func() {
			rec := do(http.MethodGet, "/api/v1/metrics/NOPE")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should reset an entity's metrics", func() {
			rec := do(http.MethodPost, "/api/v1/metrics/BLOOMBERG/reset")
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			rec = do(http.MethodGet, "/api/v1/metrics/BLOOMBERG")
			var body metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.TotalAttempts).To(BeZero())
		})

		It("should answer 404 when resetting an unknown entity", func() {
			rec := do(http.MethodPost, "/api/v1/metrics/NOPE/reset")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Cache endpoints", func() {
		It("should report cache stats", func() {
			Expect(do(http.MethodGet, "/api/v1/record?instrument=AAPL").Code).To(Equal(http.StatusOK))
			Expect(do(http.MethodGet, "/api/v1/record?instrument=AAPL").Code).To(Equal(http.StatusOK))

			rec := do(http.MethodGet, "/api/v1/cache/stats")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body cache.Stats
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Hits).To(Equal(int64(1)))
			Expect(body.Entries).To(Equal(1))
		})

		It("should invalidate a cached record", func() {
			Expect(do(http.MethodGet, "/api/v1/record?instrument=AAPL").Code).To(Equal(http.StatusOK))

			rec := do(http.MethodDelete, "/api/v1/cache?instrument=AAPL")
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			var body cache.Stats
			stats := do(http.MethodGet, "/api/v1/cache/stats")
			Expect(json.Unmarshal(stats.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Entries).To(BeZero())
		})

		It("should reject invalidation without an instrument", func() {
			rec := do(http.MethodDelete, "/api/v1/cache")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
