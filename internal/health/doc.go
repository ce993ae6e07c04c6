// Package health implements the per-vendor circuit breaker state machine.
//
// Each vendor has three states:
//
//   - CLOSED: serving, requests pass through
//   - OPEN: suppressed, requests skip the vendor until a cooldown elapses
//   - HALF-OPEN: one trial probe allowed through, everything else skips
//
// State and the consecutive-failure count live in a single atomic cell and
// every transition is a compare-and-swap on that cell, so transitions are
// linearizable per vendor without a lock: under concurrent triggers exactly
// one CAS wins, and in particular exactly one caller is granted the
// HALF-OPEN probe.
//
// Usage:
//
//	tracker := health.NewTracker(health.Config{})
//	b := tracker.Get("BLOOMBERG")
//	if ok, probe := b.Allow(); ok {
//	    // Call the vendor...
//	    if err != nil {
//	        b.RecordFailure(errRate, samples, err.Error())
//	    } else {
//	        b.RecordSuccess()
//	    }
//	    _ = probe
//	}
package health
