package source

import (
	"context"
	"time"
)

// ContentType tags the kind of instrument a vendor can serve.
type ContentType string

const (
	TypeEquity ContentType = "EQUITY"
	TypeIndex  ContentType = "INDEX"
	TypeFX     ContentType = "FX"
	TypeBond   ContentType = "BOND"
)

// Quality grades how complete and fresh a normalized record is.
type Quality string

const (
	QualityHigh   Quality = "HIGH"
	QualityMedium Quality = "MEDIUM"
	QualityLow    Quality = "LOW"
)

// RawRecord is the vendor-native payload as captured from one fetch.
// It is owned by the adapter that produced it and is immutable once built;
// the transform step consumes it and the proxy keeps no reference afterwards.
type RawRecord struct {
	InstrumentID string
	Source       string
	CapturedAt   time.Time

	LastPrice float64
	BidPrice  float64
	AskPrice  float64
	OpenPrice float64
	HighPrice float64
	LowPrice  float64
	Volume    int64

	Currency string
	Exchange string

	// Fields carries vendor-specific extras that have no canonical slot.
	Fields map[string]string

	// RawPayload is the untouched vendor response, kept for audit.
	RawPayload string
}

// CanonicalRecord is the normalized, vendor-agnostic shape returned to callers.
type CanonicalRecord struct {
	InstrumentID string    `json:"instrument_id"`
	LastPrice    float64   `json:"last_price"`
	BidPrice     float64   `json:"bid_price"`
	AskPrice     float64   `json:"ask_price"`
	OpenPrice    float64   `json:"open_price"`
	HighPrice    float64   `json:"high_price"`
	LowPrice     float64   `json:"low_price"`
	Volume       int64     `json:"volume"`
	Currency     string    `json:"currency"`
	Exchange     string    `json:"exchange"`
	CapturedAt   time.Time `json:"captured_at"`
	Source       string    `json:"source"`
	Quality      Quality   `json:"quality"`
}

// Adapter is implemented once per vendor, including simulated vendors.
// Implementations must be safe for concurrent use; FetchRaw and Probe are
// the only calls that may block, and both must honor context cancellation.
type Adapter interface {
	Name() string
	FetchRaw(ctx context.Context, instrumentID string) (RawRecord, error)
	Transform(raw RawRecord) (CanonicalRecord, error)
	Probe(ctx context.Context) bool
	SupportedTypes() []ContentType
}

// Supports reports whether ct appears in types.
func Supports(types []ContentType, ct ContentType) bool {
	for _, t := range types {
		if t == ct {
			return true
		}
	}
	return false
}
