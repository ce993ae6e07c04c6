package source

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable marks a vendor call that failed without timing
	// out, or a vendor skipped because its circuit is open.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceTimeout marks a per-source deadline that elapsed.
	ErrSourceTimeout = errors.New("source timeout")

	// ErrRequestDeadlineExceeded marks the overall request deadline firing;
	// it aborts the remaining failover chain and is distinct from
	// ErrSourceTimeout.
	ErrRequestDeadlineExceeded = errors.New("request deadline exceeded")
)

// TransformError reports a raw payload that failed normalization.
// It counts against the vendor for this request but does not necessarily
// mean the vendor is down.
type TransformError struct {
	Vendor string
	Field  string
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed for %s: %s: %s", e.Vendor, e.Field, e.Reason)
}

// AttemptError records one failed vendor attempt inside a failover sequence.
type AttemptError struct {
	Vendor string `json:"vendor"`
	Err    error  `json:"-"`
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Vendor, e.Err)
}

func (e AttemptError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every candidate vendor failed.
// It carries the per-vendor attempt errors for diagnostics and is never
// retried internally.
type ExhaustedError struct {
	InstrumentID string
	ContentType  ContentType
	Attempts     []AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("all sources exhausted for %s (%s): [%s]",
		e.InstrumentID, e.ContentType, strings.Join(parts, "; "))
}
