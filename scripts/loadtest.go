// Loadtest is a concurrent HTTP load testing tool for the market proxy.
// It hammers the record endpoint while rotating instruments and reports
// throughput, latency percentiles and per-source distribution.
//
// Usage:
//
//	go run loadtest.go -url http://localhost:8080 -concurrency 10 -requests 1000
//	go run loadtest.go -url http://localhost:8080 -type INDEX -out summary.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Proxy base URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		instruments = flag.String("instruments", "AAPL,MSFT,GOOG,AMZN,NVDA", "Comma-separated instrument rotation")
		contentType = flag.String("type", "EQUITY", "Content type query parameter")
		timeoutSec  = flag.Int("timeout", 15, "Per-request timeout in seconds")
	)

	outJSON := flag.String("out", "", "Write JSON summary to this file (optional)")
	verbose := flag.Bool("v", false, "Verbose per-request logging to stdout")
	flag.Parse()

	symbols := strings.Split(*instruments, ",")
	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var total, success, failure int32

	type sourceStats struct {
		Count     int32           `json:"count"`
		Latencies []time.Duration `json:"-"`
	}
	sources := make(map[string]*sourceStats)
	var sourceMu sync.Mutex

	var allLatencies []time.Duration
	var latMu sync.Mutex

	statusCodes := make(map[int]int32)
	var statusMu sync.Mutex

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				atomic.AddInt32(&total, 1)
				symbol := symbols[idx%len(symbols)]
				url := fmt.Sprintf("%s/api/v1/record?instrument=%s&type=%s", *baseURL, symbol, *contentType)

				start := time.Now()
				resp, err := client.Get(url)
				dur := time.Since(start)

				latMu.Lock()
				allLatencies = append(allLatencies, dur)
				latMu.Unlock()

				if err != nil {
					atomic.AddInt32(&failure, 1)
					if *verbose {
						fmt.Printf("[%d] idx=%d error=%v\n", workerID, idx, err)
					}
					continue
				}

				statusMu.Lock()
				statusCodes[resp.StatusCode]++
				statusMu.Unlock()

				src := "(none)"
				if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
					atomic.AddInt32(&success, 1)
					var rec struct {
						Source string `json:"source"`
					}
					if err := json.NewDecoder(resp.Body).Decode(&rec); err == nil && rec.Source != "" {
						src = rec.Source
					}
				} else {
					atomic.AddInt32(&failure, 1)
				}

				sourceMu.Lock()
				ss, ok := sources[src]
				if !ok {
					ss = &sourceStats{}
					sources[src] = ss
				}
				ss.Count++
				ss.Latencies = append(ss.Latencies, dur)
				sourceMu.Unlock()

				if *verbose {
					fmt.Printf("[%d] idx=%d symbol=%s source=%s status=%d dur=%v\n",
						workerID, idx, symbol, src, resp.StatusCode, dur)
				}

				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}(i)
	}

	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(testStart)

	sort.Slice(allLatencies, func(i, j int) bool { return allLatencies[i] < allLatencies[j] })

	summary := map[string]any{
		"requests":    total,
		"success":     success,
		"failure":     failure,
		"elapsed_ms":  elapsed.Milliseconds(),
		"rps":         float64(total) / elapsed.Seconds(),
		"p50_ms":      pct(allLatencies, 0.50).Milliseconds(),
		"p90_ms":      pct(allLatencies, 0.90).Milliseconds(),
		"p95_ms":      pct(allLatencies, 0.95).Milliseconds(),
		"p99_ms":      pct(allLatencies, 0.99).Milliseconds(),
		"status_code": statusCodes,
	}

	fmt.Printf("requests=%d success=%d failure=%d elapsed=%v rps=%.1f\n",
		total, success, failure, elapsed, float64(total)/elapsed.Seconds())
	fmt.Printf("latency p50=%v p90=%v p95=%v p99=%v\n",
		pct(allLatencies, 0.50), pct(allLatencies, 0.90), pct(allLatencies, 0.95), pct(allLatencies, 0.99))
	for src, ss := range sources {
		fmt.Printf("  source %-16s count=%d\n", src, ss.Count)
	}

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create summary file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
			os.Exit(1)
		}
	}
}

func pct(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
