package metrics_test

import (
	"math"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/indexbasket/market-proxy/internal/metrics"
)

var _ = Describe("Tracker", func() {
	var tracker *metrics.Tracker

	BeforeEach(func() {
		tracker = metrics.NewRegistry().Get("BLOOMBERG")
	})

	Describe("RecordOutcome", func() {
		It("should count a success", func() {
			tracker.RecordOutcome(true, 10*time.Millisecond, false)

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.Succeeded).To(Equal(int64(1)))
			Expect(snap.Failed).To(BeZero())
			Expect(snap.TimedOut).To(BeZero())
		})

		It("should count a failure", func() {
			tracker.RecordOutcome(false, 10*time.Millisecond, false)

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.Failed).To(Equal(int64(1)))
		})

		It("should let a timeout win over the success flag", func() {
			tracker.RecordOutcome(true, 10*time.Millisecond, true)

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.TimedOut).To(Equal(int64(1)))
			Expect(snap.Succeeded).To(BeZero())
			Expect(snap.Failed).To(BeZero())
		})

		It("should keep total attempts equal to the counter sum", func() {
			tracker.RecordOutcome(true, time.Millisecond, false)
			tracker.RecordOutcome(false, time.Millisecond, false)
			tracker.RecordOutcome(false, time.Millisecond, true)
			tracker.RecordOutcome(true, time.Millisecond, false)

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.TotalAttempts).To(Equal(snap.Succeeded + snap.Failed + snap.TimedOut))
			Expect(snap.TotalAttempts).To(Equal(int64(4)))
		})

		It("should stamp last activity", func() {
			tracker.RecordOutcome(true, time.Millisecond, false)

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.LastActivity).To(BeTemporally("~", time.Now(), time.Second))
		})
	})

	Describe("Rates", func() {
		It("should report zero rates with no attempts", func() {
			Expect(tracker.SuccessRate()).To(BeZero())
			Expect(tracker.FailureRate()).To(BeZero())
			Expect(tracker.TimeoutRate()).To(BeZero())
			Expect(tracker.ErrorRate()).To(BeZero())
		})

		It("should partition attempts across the three rates", func() {
			tracker.RecordOutcome(true, time.Millisecond, false)
			tracker.RecordOutcome(true, time.Millisecond, false)
			tracker.RecordOutcome(false, time.Millisecond, false)
			tracker.RecordOutcome(false, time.Millisecond, true)

			Expect(tracker.SuccessRate()).To(BeNumerically("~", 0.5, 1e-9))
			Expect(tracker.FailureRate()).To(BeNumerically("~", 0.25, 1e-9))
			Expect(tracker.TimeoutRate()).To(BeNumerically("~", 0.25, 1e-9))
			Expect(tracker.ErrorRate()).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Describe("Latency EMA", func() {
		It("should start from zero and damp the first sample", func() {
			tracker.RecordOutcome(true, 50*time.Millisecond, false)

			// alpha=0.1 against a zero average: 5ms
			Expect(tracker.AverageLatency()).To(BeNumerically("~", 5*time.Millisecond, float64(time.Microsecond)))
		})

		It("should converge geometrically toward a constant sample", func() {
			const sample = 50 * time.Millisecond

			for i := 0; i < 50; i++ {
				tracker.RecordOutcome(true, sample, false)
			}

			// avg after n samples of x is x*(1-0.9^n)
			expected := float64(sample) * (1 - math.Pow(0.9, 50))
			Expect(float64(tracker.AverageLatency())).To(BeNumerically("~", expected, float64(10*time.Microsecond)))
			Expect(tracker.AverageLatency()).To(BeNumerically("<", sample))
		})
	})

	Describe("Latency watermarks", func() {
		It("should only ever rise", func() {
			tracker.RecordOutcome(true, 40*time.Millisecond, false)
			tracker.RecordOutcome(true, 10*time.Millisecond, false)

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.P95Latency).To(Equal(40 * time.Millisecond))
			Expect(snap.P99Latency).To(Equal(40 * time.Millisecond))
		})

		It("should track the maximum observed latency", func() {
			for _, d := range []time.Duration{5, 80, 20, 110, 60} {
				tracker.RecordOutcome(true, d*time.Millisecond, false)
			}

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.P95Latency).To(Equal(110 * time.Millisecond))
			Expect(snap.P99Latency).To(Equal(110 * time.Millisecond))
		})
	})

	Describe("Health flags", func() {
		It("should report healthy with a high success rate and low latency", func() {
			for i := 0; i < 100; i++ {
				tracker.RecordOutcome(true, 5*time.Millisecond, false)
			}

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.Healthy).To(BeTrue())
			Expect(snap.HighPerformance).To(BeTrue())
		})

		It("should report unhealthy when failures pile up", func() {
			for i := 0; i < 10; i++ {
				tracker.RecordOutcome(i%2 == 0, 5*time.Millisecond, false)
			}

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.Healthy).To(BeFalse())
		})
	})

	Describe("Reset", func() {
		It("should zero every counter and watermark", func() {
			tracker.RecordOutcome(true, 50*time.Millisecond, false)
			tracker.RecordOutcome(false, 80*time.Millisecond, true)

			tracker.Reset()

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.TotalAttempts).To(BeZero())
			Expect(snap.AverageLatency).To(BeZero())
			Expect(snap.P95Latency).To(BeZero())
			Expect(snap.P99Latency).To(BeZero())
			Expect(snap.LastActivity.IsZero()).To(BeTrue())
		})
	})

	Describe("Concurrent recording", func() {
		It("should not lose outcomes under contention", func() {
			const workers = 8
			const perWorker = 250

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						tracker.RecordOutcome(i%3 != 0, time.Duration(i%20)*time.Millisecond, i%7 == 0)
					}
				}()
			}
			wg.Wait()

			snap := tracker.Snapshot("BLOOMBERG")
			Expect(snap.TotalAttempts).To(Equal(int64(workers * perWorker)))
			Expect(snap.TotalAttempts).To(Equal(snap.Succeeded + snap.Failed + snap.TimedOut))
			Expect(snap.P95Latency).To(Equal(19 * time.Millisecond))
		})
	})
})
