// Package metrics tracks per-entity call outcomes: success/failure/timeout
// counters, a latency EMA and p95/p99 high-watermarks.
//
// Recording is lock-free. Counters use atomic increments and the
// floating-point cells use compare-and-swap retry loops, so concurrent
// outcome reports never block the request path.
//
// The p95/p99 values are a deliberate simplification carried over from the
// original design: each is the maximum latency observed since the last
// reset, not a true quantile over a sliding window.
//
// Usage:
//
//	registry := metrics.NewRegistry()
//	t := registry.Get("BLOOMBERG")
//	t.RecordOutcome(true, 12*time.Millisecond, false)
//	snap := t.Snapshot("BLOOMBERG")
package metrics
