package cache_test

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/indexbasket/market-proxy/internal/cache"
	"github.com/indexbasket/market-proxy/internal/source"
)

func record(id string) source.CanonicalRecord {
	return source.CanonicalRecord{
		InstrumentID: id,
		LastPrice:    100,
		Currency:     "USD",
		Source:       "BLOOMBERG",
		CapturedAt:   time.Now(),
		Quality:      source.QualityHigh,
	}
}

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		c = cache.New(time.Minute, 100)
	})

	Describe("Get and Put", func() {
		It("should miss an empty cache", func() {
			_, ok := c.Get("AAPL", source.TypeEquity)
			Expect(ok).To(BeFalse())
		})

		It("should return a stored record", func() {
			c.Put("AAPL", source.TypeEquity, record("AAPL"))

			got, ok := c.Get("AAPL", source.TypeEquity)
			Expect(ok).To(BeTrue())
			Expect(got.InstrumentID).To(Equal("AAPL"))
		})

		It("should key on the content type as well as the instrument", func() {
			c.Put("SPX", source.TypeIndex, record("SPX"))

			_, ok := c.Get("SPX", source.TypeEquity)
			Expect(ok).To(BeFalse())

			_, ok = c.Get("SPX", source.TypeIndex)
			Expect(ok).To(BeTrue())
		})

		It("should expire records after the TTL", func() {
			short := cache.New(20*time.Millisecond, 100)
			short.Put("AAPL", source.TypeEquity, record("AAPL"))

			_, ok := short.Get("AAPL", source.TypeEquity)
			Expect(ok).To(BeTrue())

			time.Sleep(30 * time.Millisecond)

			_, ok = short.Get("AAPL", source.TypeEquity)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Disabled cache", func() {
		It("should store and return nothing with a zero TTL", func() {
			disabled := cache.New(0, 100)
			disabled.Put("AAPL", source.TypeEquity, record("AAPL"))

			_, ok := disabled.Get("AAPL", source.TypeEquity)
			Expect(ok).To(BeFalse())
			Expect(disabled.Stats().Puts).To(BeZero())
		})
	})

	Describe("Entry cap", func() {
		It("should stay at or under the cap", func() {
			capped := cache.New(time.Minute, 10)
			for i := 0; i < 25; i++ {
				id := fmt.Sprintf("INST-%02d", i)
				capped.Put(id, source.TypeEquity, record(id))
			}

			Expect(capped.Stats().Entries).To(BeNumerically("<=", 10))
		})
	})

	Describe("Invalidate", func() {
		It("should drop a single record", func() {
			c.Put("AAPL", source.TypeEquity, record("AAPL"))
			c.Put("MSFT", source.TypeEquity, record("MSFT"))

			c.Invalidate("AAPL", source.TypeEquity)

			_, ok := c.Get("AAPL", source.TypeEquity)
			Expect(ok).To(BeFalse())
			_, ok = c.Get("MSFT", source.TypeEquity)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Clear", func() {
		It("should drop everything but keep the counters", func() {
			c.Put("AAPL", source.TypeEquity, record("AAPL"))
			c.Get("AAPL", source.TypeEquity)

			c.Clear()

			stats := c.Stats()
			Expect(stats.Entries).To(BeZero())
			Expect(stats.Hits).To(Equal(int64(1)))
		})
	})

	Describe("Stats", func() {
		It("should track hits, misses and the hit rate", func() {
			c.Put("AAPL", source.TypeEquity, record("AAPL"))

			c.Get("AAPL", source.TypeEquity)
			c.Get("AAPL", source.TypeEquity)
			c.Get("MSFT", source.TypeEquity)
			c.Get("GOOG", source.TypeEquity)

			stats := c.Stats()
			Expect(stats.Hits).To(Equal(int64(2)))
			Expect(stats.Misses).To(Equal(int64(2)))
			Expect(stats.Puts).To(Equal(int64(1)))
			Expect(stats.HitRate).To(BeNumerically("~", 0.5, 1e-9))
		})
	})
})
