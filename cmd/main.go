package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indexbasket/market-proxy/config"
	"github.com/indexbasket/market-proxy/internal/cache"
	"github.com/indexbasket/market-proxy/internal/failover"
	"github.com/indexbasket/market-proxy/internal/handler"
	"github.com/indexbasket/market-proxy/internal/health"
	"github.com/indexbasket/market-proxy/internal/heartbeat"
	"github.com/indexbasket/market-proxy/internal/httpserver"
	"github.com/indexbasket/market-proxy/internal/metrics"
	"github.com/indexbasket/market-proxy/internal/proxy"
	"github.com/indexbasket/market-proxy/internal/source"
	"github.com/indexbasket/market-proxy/internal/vendors/sim"
	"github.com/indexbasket/market-proxy/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	requestTimeout, err := time.ParseDuration(cfg.Request.Timeout)
	if err != nil {
		log.Error("invalid request timeout", slog.Any("err", err))
		os.Exit(1)
	}

	healthTracker := health.NewTracker(health.Config{})
	metricsRegistry := metrics.NewRegistry()
	registry := failover.NewRegistry(healthTracker, metricsRegistry, log, requestTimeout)

	if err := registerVendors(ctx, cfg, registry, healthTracker, log); err != nil {
		log.Error("failed to register vendors", slog.Any("err", err))
		os.Exit(1)
	}

	cacheTTL, err := time.ParseDuration(cfg.Cache.TTL)
	if err != nil {
		log.Error("invalid cache ttl", slog.Any("err", err))
		os.Exit(1)
	}
	records := cache.New(cacheTTL, cfg.Cache.MaxEntries)

	manager := proxy.NewManager(registry, records, healthTracker, metricsRegistry, log, cfg.Request.BatchConcurrency)
	proxyHandler := handler.NewProxyHandler(log, manager)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(proxyHandler))
	if err != nil {
		log.Error("failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("market proxy listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("vendors", len(cfg.Vendors)))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("error starting market proxy", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// registerVendors builds the adapter for each configured vendor, registers
// it with the failover registry, and starts its heartbeat loop.
func registerVendors(
	ctx context.Context,
	cfg *config.Config,
	registry *failover.Registry,
	healthTracker *health.Tracker,
	log *slog.Logger,
) error {
	interval, err := time.ParseDuration(cfg.Heartbeat.Interval)
	if err != nil {
		return fmt.Errorf("invalid heartbeat interval: %w", err)
	}

	for _, vc := range cfg.Vendors {
		adapter, err := buildAdapter(vc)
		if err != nil {
			return err
		}

		timeout, err := time.ParseDuration(vc.Timeout)
		if err != nil {
			return fmt.Errorf("vendor %s: invalid timeout: %w", vc.Name, err)
		}

		breakerConfig := health.Config{
			FailureThreshold: uint32(vc.FailureThreshold),
			ErrorRateCeiling: vc.ErrorRateCeiling,
		}
		if vc.Cooldown != "" {
			cooldown, err := time.ParseDuration(vc.Cooldown)
			if err != nil {
				return fmt.Errorf("vendor %s: invalid cooldown: %w", vc.Name, err)
			}
			breakerConfig.Cooldown = cooldown
		}

		desc := failover.Descriptor{
			Vendor:       vc.Name,
			Priority:     vc.Priority,
			ContentTypes: contentTypes(vc.ContentTypes),
			Adapter:      adapter,
			Timeout:      timeout,
			RateLimit:    vc.RateLimit,
			Burst:        vc.Burst,
		}
		if err := registry.Register(desc, breakerConfig); err != nil {
			return err
		}

		go heartbeat.Monitor(ctx, adapter, healthTracker.Get(vc.Name), interval, log)
	}

	return nil
}

func buildAdapter(vc config.VendorConfig) (source.Adapter, error) {
	switch vc.Driver {
	case config.DriverSim:
		var latency time.Duration
		if vc.Latency != "" {
			var err error
			latency, err = time.ParseDuration(vc.Latency)
			if err != nil {
				return nil, fmt.Errorf("vendor %s: invalid latency: %w", vc.Name, err)
			}
		}
		return sim.NewFeed(vc.Name, sim.Config{
			ContentTypes: contentTypes(vc.ContentTypes),
			BasePrice:    vc.BasePrice,
			Latency:      latency,
			Seed:         vc.Seed,
		}), nil
	default:
		return nil, fmt.Errorf("vendor %s: unknown driver %q", vc.Name, vc.Driver)
	}
}

func contentTypes(raw []string) []source.ContentType {
	types := make([]source.ContentType, 0, len(raw))
	for _, t := range raw {
		types = append(types, source.ContentType(t))
	}
	return types
}
