// Package failover routes fetch requests across an ordered set of vendor
// adapters.
//
// Adapters are registered with a static priority and a set of supported
// content types. Execute walks the eligible candidates strictly
// sequentially: circuit-open vendors are skipped, a failing vendor's error
// is absorbed and the next candidate is tried, and only exhaustion or the
// overall request deadline surface to the caller.
//
// Every registered adapter is wrapped so that each attempt unconditionally
// reports its outcome (latency plus success/failure/timeout) to the metrics
// registry and the vendor's circuit breaker before control returns —
// adapter implementations cannot skip the reporting.
package failover
