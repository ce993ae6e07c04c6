// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, the vendor roster with per-vendor circuit-breaker
// thresholds, cache and request limits, and the heartbeat interval.
package config
