// Package quality validates vendor payloads before normalization and grades
// how complete and fresh a record is.
package quality
