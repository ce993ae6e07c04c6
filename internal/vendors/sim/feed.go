// Package sim provides a simulated vendor feed implementing the adapter
// contract. It generates jittered prices from a fixed seed, so runs are
// reproducible, and exposes knobs to inject latency, failures and outages.
// It backs the "sim" driver in config and doubles as the test vendor.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/indexbasket/market-proxy/internal/quality"
	"github.com/indexbasket/market-proxy/internal/source"
)

// Config shapes one simulated feed. Zero fields fall back to defaults.
type Config struct {
	ContentTypes []source.ContentType // default: EQUITY
	BasePrice    float64              // default: 100
	Latency      time.Duration        // artificial delay per fetch
	Exchange     string               // default: SIM
	Currency     string               // default: USD
	Seed         int64                // rng seed; 0 means 1
}

// Feed is a deterministic fake vendor.
type Feed struct {
	name   string
	config Config

	mutex    sync.Mutex
	rng      *rand.Rand
	injected []error
	down     bool
}

func NewFeed(name string, config Config) *Feed {
	if len(config.ContentTypes) == 0 {
		config.ContentTypes = []source.ContentType{source.TypeEquity}
	}
	if config.BasePrice <= 0 {
		config.BasePrice = 100
	}
	if config.Exchange == "" {
		config.Exchange = "SIM"
	}
	if config.Currency == "" {
		config.Currency = "USD"
	}
	if config.Seed == 0 {
		config.Seed = 1
	}

	return &Feed{
		name:   name,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

func (f *Feed) Name() string { return f.name }

func (f *Feed) SupportedTypes() []source.ContentType {
	return f.config.ContentTypes
}

// FailNext queues errors to be returned by the next FetchRaw calls, in
// order, before normal generation resumes.
func (f *Feed) FailNext(errs ...error) {
	f.mutex.Lock()
	f.injected = append(f.injected, errs...)
	f.mutex.Unlock()
}

// SetDown marks the vendor as dark: probes fail and fetches return
// ErrSourceUnavailable until it is brought back up.
func (f *Feed) SetDown(down bool) {
	f.mutex.Lock()
	f.down = down
	f.mutex.Unlock()
}

func (f *Feed) FetchRaw(ctx context.Context, instrumentID string) (source.RawRecord, error) {
	if f.config.Latency > 0 {
		timer := time.NewTimer(f.config.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return source.RawRecord{}, ctx.Err()
		case <-timer.C:
		}
	}

	f.mutex.Lock()
	if len(f.injected) > 0 {
		err := f.injected[0]
		f.injected = f.injected[1:]
		f.mutex.Unlock()
		return source.RawRecord{}, err
	}
	if f.down {
		f.mutex.Unlock()
		return source.RawRecord{}, fmt.Errorf("%s is dark: %w", f.name, source.ErrSourceUnavailable)
	}

	// Jitter the price around the base, +-0.5%
	last := f.config.BasePrice * (1 + (f.rng.Float64()-0.5)/100)
	spread := last * 0.0005
	volume := int64(1000 + f.rng.Intn(100000))
	f.mutex.Unlock()

	now := time.Now()
	raw := source.RawRecord{
		InstrumentID: instrumentID,
		Source:       f.name,
		CapturedAt:   now,
		LastPrice:    last,
		BidPrice:     last - spread,
		AskPrice:     last + spread,
		OpenPrice:    f.config.BasePrice,
		HighPrice:    last + 2*spread,
		LowPrice:     last - 2*spread,
		Volume:       volume,
		Currency:     f.config.Currency,
		Exchange:     f.config.Exchange,
		Fields: map[string]string{
			"feed": "sim",
		},
	}
	raw.RawPayload = fmt.Sprintf(`{"id":%q,"last":%.4f,"bid":%.4f,"ask":%.4f,"vol":%d,"ts":%q}`,
		instrumentID, raw.LastPrice, raw.BidPrice, raw.AskPrice, raw.Volume, now.Format(time.RFC3339Nano))

	return raw, nil
}

func (f *Feed) Transform(raw source.RawRecord) (source.CanonicalRecord, error) {
	if err := quality.ValidateRaw(raw); err != nil {
		return source.CanonicalRecord{}, err
	}

	return source.CanonicalRecord{
		InstrumentID: raw.InstrumentID,
		LastPrice:    raw.LastPrice,
		BidPrice:     raw.BidPrice,
		AskPrice:     raw.AskPrice,
		OpenPrice:    raw.OpenPrice,
		HighPrice:    raw.HighPrice,
		LowPrice:     raw.LowPrice,
		Volume:       raw.Volume,
		Currency:     raw.Currency,
		Exchange:     raw.Exchange,
		CapturedAt:   raw.CapturedAt,
		Source:       raw.Source,
		Quality:      quality.Score(raw, time.Now()),
	}, nil
}

// Probe is the liveness check; it does not generate a record.
func (f *Feed) Probe(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return !f.down
}
