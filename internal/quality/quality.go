package quality

import (
	"time"

	"github.com/indexbasket/market-proxy/internal/source"
)

// freshnessHigh is the capture age under which a complete record still
// grades HIGH.
const freshnessHigh = 5 * time.Second

// ValidateRaw checks the fields every vendor payload must carry before it
// can be normalized. A failure is a TransformError attributed to the vendor.
func ValidateRaw(raw source.RawRecord) error {
	switch {
	case raw.InstrumentID == "":
		return &source.TransformError{Vendor: raw.Source, Field: "instrument_id", Reason: "missing"}
	case raw.Currency == "":
		return &source.TransformError{Vendor: raw.Source, Field: "currency", Reason: "missing"}
	case raw.LastPrice <= 0:
		return &source.TransformError{Vendor: raw.Source, Field: "last_price", Reason: "must be positive"}
	case raw.BidPrice < 0 || raw.AskPrice < 0:
		return &source.TransformError{Vendor: raw.Source, Field: "bid_price/ask_price", Reason: "negative"}
	case raw.BidPrice > 0 && raw.AskPrice > 0 && raw.BidPrice > raw.AskPrice:
		return &source.TransformError{Vendor: raw.Source, Field: "bid_price", Reason: "crossed (bid above ask)"}
	case raw.CapturedAt.IsZero():
		return &source.TransformError{Vendor: raw.Source, Field: "captured_at", Reason: "missing"}
	}
	return nil
}

// Score grades a validated payload by field completeness and capture age.
//
//   - HIGH: bid/ask, full OHLC, volume present and captured recently
//   - MEDIUM: last price plus at least one of bid/ask or OHLC
//   - LOW: everything else that still passed validation
func Score(raw source.RawRecord, now time.Time) source.Quality {
	hasQuote := raw.BidPrice > 0 && raw.AskPrice > 0
	hasOHLC := raw.OpenPrice > 0 && raw.HighPrice > 0 && raw.LowPrice > 0
	fresh := now.Sub(raw.CapturedAt) <= freshnessHigh

	if hasQuote && hasOHLC && raw.Volume > 0 && fresh {
		return source.QualityHigh
	}
	if hasQuote || hasOHLC {
		return source.QualityMedium
	}
	return source.QualityLow
}
