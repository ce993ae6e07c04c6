package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/indexbasket/market-proxy/internal/health"
	"github.com/indexbasket/market-proxy/internal/metrics"
	"github.com/indexbasket/market-proxy/internal/source"
)

// instrumented wraps a vendor adapter with rate limiting, the per-source
// timeout, and the mandatory outcome reporting. The registry applies it at
// registration time, so no adapter implementation can bypass it.
type instrumented struct {
	adapter source.Adapter
	vendor  string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *health.Breaker
	tracker *metrics.Tracker
	logger  *slog.Logger
}

// fetch runs one vendor attempt: limiter wait, fetch, transform. The
// outcome is recorded before any return.
func (c *instrumented) fetch(ctx context.Context, instrumentID string) (source.CanonicalRecord, error) {
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			rateLimited := fmt.Errorf("rate limited: %v: %w", err, source.ErrSourceUnavailable)
			return source.CanonicalRecord{}, c.report(ctx, source.CanonicalRecord{}, rateLimited, time.Since(start))
		}
	}

	srcCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		srcCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.adapter.FetchRaw(srcCtx, instrumentID)

	var rec source.CanonicalRecord
	if err == nil {
		rec, err = c.adapter.Transform(raw)
	}

	latency := time.Since(start)
	if err != nil {
		return source.CanonicalRecord{}, c.report(ctx, rec, err, latency)
	}

	c.tracker.RecordOutcome(true, latency, false)
	c.breaker.RecordSuccess()
	return rec, nil
}

// report classifies a failed attempt, records it against the vendor, and
// returns the error the failover loop should see.
func (c *instrumented) report(ctx context.Context, _ source.CanonicalRecord, err error, latency time.Duration) error {
	timedOut := errors.Is(err, source.ErrSourceTimeout) || errors.Is(err, context.DeadlineExceeded)

	c.tracker.RecordOutcome(false, latency, timedOut)
	c.breaker.RecordFailure(c.tracker.ErrorRate(), c.tracker.TotalAttempts(), err.Error())

	c.logger.Warn("vendor call failed",
		slog.String("vendor", c.vendor),
		slog.Duration("latency", latency),
		slog.Bool("timed_out", timedOut),
		slog.Any("err", err))

	if timedOut {
		// The overall request deadline firing aborts the chain; a
		// per-source deadline is just this vendor's timeout.
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.vendor, source.ErrRequestDeadlineExceeded)
		}
		if errors.Is(err, source.ErrSourceTimeout) {
			return err
		}
		return fmt.Errorf("%s: %w", c.vendor, source.ErrSourceTimeout)
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", c.vendor, source.ErrRequestDeadlineExceeded)
	}

	var transformErr *source.TransformError
	if errors.As(err, &transformErr) || errors.Is(err, source.ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", c.vendor, err, source.ErrSourceUnavailable)
}
