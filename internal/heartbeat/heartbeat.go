// Package heartbeat runs the background liveness loop for each vendor.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/indexbasket/market-proxy/internal/health"
	"github.com/indexbasket/market-proxy/internal/source"
)

const probeTimeout = 5 * time.Second

// Monitor periodically probes a vendor and stamps its last heartbeat. When
// the vendor's circuit is OPEN and past its cooldown, the monitor claims
// the HALF-OPEN probe slot so a recovered vendor is closed again without
// waiting for client traffic. Probe outcomes never enter the fetch metrics.
func Monitor(
	ctx context.Context,
	adapter source.Adapter,
	breaker *health.Breaker,
	interval time.Duration,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("heartbeat stopped",
				slog.String("vendor", adapter.Name()))
			return

		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			healthy := adapter.Probe(probeCtx)
			cancel()

			breaker.Heartbeat()

			if healthy {
				logger.Debug("heartbeat ok", slog.String("vendor", adapter.Name()))
			} else {
				logger.Warn("heartbeat failed", slog.String("vendor", adapter.Name()))
			}

			if breaker.State() != health.StateOpen {
				continue
			}

			// Only the winner of the HALF-OPEN slot may decide recovery.
			ok, probe := breaker.Allow()
			if !ok || !probe {
				continue
			}

			if healthy {
				breaker.RecordSuccess()
				logger.Info("vendor is back up",
					slog.String("vendor", adapter.Name()))
			} else {
				breaker.RecordFailure(0, 0, "recovery probe failed")
				logger.Warn("vendor still down",
					slog.String("vendor", adapter.Name()))
			}
		}
	}
}
