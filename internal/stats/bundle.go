package stats

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

// Bundle is the per-endpoint (or global) stats accumulator of
// SPEC_FULL.md §3. All scalar fields are atomics, matching the teacher's
// VUMetrics idiom (internal/vu/types.go) — short, lock-free critical
// sections rather than one coarse mutex around the whole bundle.
type Bundle struct {
	Histogram *Histogram

	TotalRequests      atomic.Int64
	SuccessfulRequests atomic.Int64
	ErrorCount         atomic.Int64
	TotalResponseBytes atomic.Int64

	maxLatencyMs atomic.Int64
	minLatencyMs atomic.Int64

	startedAt time.Time
}

func NewBundle() *Bundle {
	b := &Bundle{
		Histogram: NewHistogram(),
		startedAt: time.Now(),
	}
	b.minLatencyMs.Store(math.MaxInt64)
	return b
}

// ObserveLatency folds d (milliseconds) into max/min and the histogram.
// Non-fatal: a histogram value outside its clamped range is still recorded
// (clamped), never dropped — see Histogram.Increment.
func (b *Bundle) ObserveLatency(d int64) {
	for {
		prev := b.maxLatencyMs.Load()
		if d <= prev || b.maxLatencyMs.CompareAndSwap(prev, d) {
			break
		}
	}
	for {
		prev := b.minLatencyMs.Load()
		if d >= prev || b.minLatencyMs.CompareAndSwap(prev, d) {
			break
		}
	}
	b.Histogram.Increment(d)
}

func (b *Bundle) AddResponseBytes(n int64) {
	b.TotalResponseBytes.Add(n)
}

// BundleSnapshot is a read-only, point-in-time copy of a Bundle. Per
// SPEC_FULL.md §5, this is not a consistent cut across fields — each is
// sampled independently.
type BundleSnapshot struct {
	TotalRequests      int64
	SuccessfulRequests int64
	ErrorCount         int64
	TotalResponseBytes int64
	MaxLatencyMs       int64
	MinLatencyMs       int64
	Median             int64
	P95                int64
	P99                int64
	ElapsedSec         float64
}

func (b *Bundle) Snapshot() BundleSnapshot {
	minLatency := b.minLatencyMs.Load()
	if minLatency == math.MaxInt64 {
		minLatency = 0
	}
	elapsed := time.Since(b.startedAt).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	return BundleSnapshot{
		TotalRequests:      b.TotalRequests.Load(),
		SuccessfulRequests: b.SuccessfulRequests.Load(),
		ErrorCount:         b.ErrorCount.Load(),
		TotalResponseBytes: b.TotalResponseBytes.Load(),
		MaxLatencyMs:       b.maxLatencyMs.Load(),
		MinLatencyMs:       minLatency,
		Median:             b.Histogram.Percentile(50),
		P95:                b.Histogram.Percentile(95),
		P99:                b.Histogram.Percentile(99),
		ElapsedSec:         elapsed,
	}
}

// DeriveApiResult computes the ApiResult view of a per-endpoint bundle,
// per SPEC_FULL.md §4.6. elapsedSec should be the run's configured
// duration once it is known (wall-clock, not live-elapsed) for the final
// snapshot, or live-elapsed for intermediate publisher ticks — callers
// decide which; DeriveApiResult only does the arithmetic.
func DeriveApiResult(ep model.Endpoint, concurrentNumber int, snap BundleSnapshot, elapsedSec float64) model.ApiResult {
	if elapsedSec <= 0 {
		elapsedSec = 1e-9
	}
	var successRate, errorRate, rps float64
	if snap.TotalRequests > 0 {
		successRate = float64(snap.SuccessfulRequests) / float64(snap.TotalRequests) * 100
		errorRate = float64(snap.ErrorCount) / float64(snap.TotalRequests) * 100
	}
	rps = float64(snap.SuccessfulRequests) / elapsedSec
	totalKB := float64(snap.TotalResponseBytes) / 1024
	throughput := totalKB / elapsedSec

	return model.ApiResult{
		Name:                 ep.Name,
		URL:                  ep.URL,
		Method:               ep.Method,
		SuccessRate:          successRate,
		ErrorRate:            errorRate,
		MedianResponseTimeMs: snap.Median,
		ResponseTime95Ms:     snap.P95,
		ResponseTime99Ms:     snap.P99,
		TotalRequests:        snap.TotalRequests,
		RPS:                  rps,
		MaxResponseTimeMs:    snap.MaxLatencyMs,
		MinResponseTimeMs:    snap.MinLatencyMs,
		TotalDataKB:          totalKB,
		ThroughputPerSecKB:   throughput,
		ConcurrentNumber:     concurrentNumber,
	}
}

// GlobalBundle adds the two keyed error tables to a Bundle (SPEC_FULL.md §3).
type GlobalBundle struct {
	Bundle
	httpErrors   *HTTPErrorTable
	assertErrors *AssertErrorTable
}

func NewGlobalBundle() *GlobalBundle {
	return &GlobalBundle{
		Bundle:       *NewBundle(),
		httpErrors:   newHTTPErrorTable(),
		assertErrors: newAssertErrorTable(),
	}
}

func (g *GlobalBundle) HTTPErrors() *HTTPErrorTable     { return g.httpErrors }
func (g *GlobalBundle) AssertErrors() *AssertErrorTable { return g.assertErrors }

// httpErrorKey and assertErrorKey are comparable structs usable as map
// keys, mirroring original_source/src/models/http_error_stats.rs and
// assert_error_stats.rs's tuple-keyed HashMaps.
type httpErrorKey struct {
	StatusCode int
	Message    string
	URL        string
}

type assertErrorKey struct {
	URL     string
	Message string
}

// HTTPErrorTable is the transport/HTTP error table keyed by
// (status_code, message, url) — SPEC_FULL.md §3.
type HTTPErrorTable struct {
	mu      sync.RWMutex
	entries map[httpErrorKey]uint32
}

func newHTTPErrorTable() *HTTPErrorTable {
	return &HTTPErrorTable{entries: make(map[httpErrorKey]uint32)}
}

func (t *HTTPErrorTable) Increment(statusCode int, message, url string) {
	key := httpErrorKey{StatusCode: statusCode, Message: message, URL: url}
	t.mu.Lock()
	t.entries[key]++
	t.mu.Unlock()
}

func (t *HTTPErrorTable) Snapshot() []model.HTTPErrorEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.HTTPErrorEntry, 0, len(t.entries))
	for k, n := range t.entries {
		out = append(out, model.HTTPErrorEntry{StatusCode: k.StatusCode, Message: k.Message, URL: k.URL, Count: n})
	}
	return out
}

// AssertErrorTable is the assertion-error table keyed by (url, message).
type AssertErrorTable struct {
	mu      sync.RWMutex
	entries map[assertErrorKey]uint32
}

func newAssertErrorTable() *AssertErrorTable {
	return &AssertErrorTable{entries: make(map[assertErrorKey]uint32)}
}

func (t *AssertErrorTable) Increment(url, message string) {
	key := assertErrorKey{URL: url, Message: message}
	t.mu.Lock()
	t.entries[key]++
	t.mu.Unlock()
}

func (t *AssertErrorTable) Snapshot() []model.AssertErrorEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.AssertErrorEntry, 0, len(t.entries))
	for k, n := range t.entries {
		out = append(out, model.AssertErrorEntry{URL: k.URL, Message: k.Message, Count: n})
	}
	return out
}
