package metrics

import (
	"math"
	"sync/atomic"
	"time"
)

// emaAlpha is the smoothing factor for the latency EMA.
const emaAlpha = 0.1

const (
	healthyMinSuccessRate = 0.95
	healthyMaxLatency     = 100 * time.Millisecond
	highPerfMaxLatency    = 10 * time.Millisecond
)

// Tracker holds the performance counters for one entity (a vendor or a
// topic). All cells are independent atomics; see the package doc for the
// concurrency model.
type Tracker struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64

	// avgLatency holds math.Float64bits of the EMA in nanoseconds.
	avgLatency atomic.Uint64

	// High-watermarks in nanoseconds. Never decrease except on Reset.
	p95 atomic.Int64
	p99 atomic.Int64

	lastActivity atomic.Int64 // unix nanos
}

// Snapshot is a point-in-time read-only view of a Tracker.
type Snapshot struct {
	Entity          string        `json:"entity"`
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	TimedOut        int64         `json:"timed_out"`
	TotalAttempts   int64         `json:"total_attempts"`
	SuccessRate     float64       `json:"success_rate"`
	FailureRate     float64       `json:"failure_rate"`
	TimeoutRate     float64       `json:"timeout_rate"`
	AverageLatency  time.Duration `json:"average_latency_ns"`
	P95Latency      time.Duration `json:"p95_latency_ns"`
	P99Latency      time.Duration `json:"p99_latency_ns"`
	LastActivity    time.Time     `json:"last_activity"`
	Healthy         bool          `json:"healthy"`
	HighPerformance bool          `json:"high_performance"`
}

// RecordOutcome registers one completed call. Exactly one of the three
// counters is incremented: timedOut wins over the success flag, so a timed
// out call is never also counted as succeeded or failed.
func (t *Tracker) RecordOutcome(success bool, latency time.Duration, timedOut bool) {
	switch {
	case timedOut:
		t.timedOut.Add(1)
	case success:
		t.succeeded.Add(1)
	default:
		t.failed.Add(1)
	}

	t.updateEMA(latency)
	t.raiseWatermark(&t.p95, latency)
	t.raiseWatermark(&t.p99, latency)
	t.lastActivity.Store(time.Now().UnixNano())
}

// updateEMA folds latency into the moving average with a CAS retry loop.
// The EMA starts from zero, so the first samples are damped rather than
// seeding the average.
func (t *Tracker) updateEMA(latency time.Duration) {
	for {
		oldBits := t.avgLatency.Load()
		oldAvg := math.Float64frombits(oldBits)
		newAvg := emaAlpha*float64(latency) + (1-emaAlpha)*oldAvg
		if t.avgLatency.CompareAndSwap(oldBits, math.Float64bits(newAvg)) {
			return
		}
	}
}

func (t *Tracker) raiseWatermark(cell *atomic.Int64, latency time.Duration) {
	n := int64(latency)
	for {
		cur := cell.Load()
		if n <= cur {
			return
		}
		if cell.CompareAndSwap(cur, n) {
			return
		}
	}
}

// AverageLatency returns the current latency EMA.
func (t *Tracker) AverageLatency() time.Duration {
	return time.Duration(math.Float64frombits(t.avgLatency.Load()))
}

// SuccessRate returns succeeded/totalAttempts, or 0 with no attempts yet.
func (t *Tracker) SuccessRate() float64 {
	return t.rate(t.succeeded.Load())
}

// FailureRate returns failed/totalAttempts, or 0 with no attempts yet.
func (t *Tracker) FailureRate() float64 {
	return t.rate(t.failed.Load())
}

// TimeoutRate returns timedOut/totalAttempts, or 0 with no attempts yet.
func (t *Tracker) TimeoutRate() float64 {
	return t.rate(t.timedOut.Load())
}

// ErrorRate is the combined failure and timeout share of all attempts.
func (t *Tracker) ErrorRate() float64 {
	return t.rate(t.failed.Load() + t.timedOut.Load())
}

// TotalAttempts returns the sum of all three outcome counters.
func (t *Tracker) TotalAttempts() int64 {
	return t.succeeded.Load() + t.failed.Load() + t.timedOut.Load()
}

func (t *Tracker) rate(n int64) float64 {
	total := t.TotalAttempts()
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Snapshot captures the tracker state under the given entity name.
func (t *Tracker) Snapshot(entity string) Snapshot {
	succeeded := t.succeeded.Load()
	failed := t.failed.Load()
	timedOut := t.timedOut.Load()
	total := succeeded + failed + timedOut

	rate := func(n int64) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total)
	}

	avg := t.AverageLatency()

	var last time.Time
	if ns := t.lastActivity.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}

	return Snapshot{
		Entity:          entity,
		Succeeded:       succeeded,
		Failed:          failed,
		TimedOut:        timedOut,
		TotalAttempts:   total,
		SuccessRate:     rate(succeeded),
		FailureRate:     rate(failed),
		TimeoutRate:     rate(timedOut),
		AverageLatency:  avg,
		P95Latency:      time.Duration(t.p95.Load()),
		P99Latency:      time.Duration(t.p99.Load()),
		LastActivity:    last,
		Healthy:         rate(succeeded) >= healthyMinSuccessRate && avg < healthyMaxLatency,
		HighPerformance: avg < highPerfMaxLatency,
	}
}

// Reset zeroes every counter and watermark. Circuit-breaker state is a
// separate subsystem and is not touched.
func (t *Tracker) Reset() {
	t.succeeded.Store(0)
	t.failed.Store(0)
	t.timedOut.Store(0)
	t.avgLatency.Store(0)
	t.p95.Store(0)
	t.p99.Store(0)
	t.lastActivity.Store(0)
}
