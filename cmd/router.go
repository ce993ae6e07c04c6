package main

import (
	"net/http"

	"github.com/indexbasket/market-proxy/internal/handler"
)

func setupRouter(proxyHandler *handler.ProxyHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/record", proxyHandler.GetRecord)
	mux.HandleFunc("GET /api/v1/records", proxyHandler.GetBatch)
	mux.HandleFunc("GET /api/v1/vendors", proxyHandler.ResolveVendors)
	mux.HandleFunc("GET /api/v1/vendors/health", proxyHandler.ListVendorHealth)
	mux.HandleFunc("GET /api/v1/vendors/health/{vendor}", proxyHandler.GetVendorHealth)
	mux.HandleFunc("GET /api/v1/metrics", proxyHandler.ListMetrics)
	mux.HandleFunc("GET /api/v1/metrics/{entity}", proxyHandler.GetMetrics)
	mux.HandleFunc("POST /api/v1/metrics/{entity}/reset", proxyHandler.ResetMetrics)
	mux.HandleFunc("GET /api/v1/cache/stats", proxyHandler.CacheStats)
	mux.HandleFunc("DELETE /api/v1/cache", proxyHandler.InvalidateCache)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}
