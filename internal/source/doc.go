// Package source defines the vendor adapter contract and the record shapes
// flowing through the proxy.
//
// Every market-data vendor is integrated behind the Adapter interface:
//
//   - FetchRaw pulls the vendor-native payload for one instrument
//   - Transform normalizes it into a CanonicalRecord
//   - Probe is a lightweight liveness check, independent of FetchRaw
//   - SupportedTypes declares which content types the vendor can serve
//
// The package also owns the error taxonomy shared by the failover chain:
// ErrSourceUnavailable, ErrSourceTimeout, ErrRequestDeadlineExceeded,
// TransformError and ExhaustedError.
package source
