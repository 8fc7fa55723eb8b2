package stats

import (
	"testing"

	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

func TestBundleObserveLatencyMaxMin(t *testing.T) {
	b := NewBundle()
	b.ObserveLatency(50)
	b.ObserveLatency(10)
	b.ObserveLatency(200)

	snap := b.Snapshot()
	if snap.MaxLatencyMs != 200 {
		t.Fatalf("MaxLatencyMs = %d, want 200", snap.MaxLatencyMs)
	}
	if snap.MinLatencyMs > 10 {
		t.Fatalf("MinLatencyMs = %d, want <= 10", snap.MinLatencyMs)
	}
}

func TestBundleSnapshotEmpty(t *testing.T) {
	b := NewBundle()
	snap := b.Snapshot()
	if snap.MinLatencyMs != 0 {
		t.Fatalf("MinLatencyMs on empty bundle = %d, want 0", snap.MinLatencyMs)
	}
	if snap.TotalRequests != 0 {
		t.Fatalf("TotalRequests = %d, want 0", snap.TotalRequests)
	}
}

func TestGlobalBundleErrorTablesAggregate(t *testing.T) {
	g := NewGlobalBundle()
	g.HTTPErrors().Increment(500, "boom", "http://a")
	g.HTTPErrors().Increment(500, "boom", "http://a")
	g.HTTPErrors().Increment(404, "missing", "http://b")

	entries := g.HTTPErrors().Snapshot()
	var total uint32
	for _, e := range entries {
		total += e.Count
	}
	if total != 3 {
		t.Fatalf("total http error count = %d, want 3", total)
	}

	g.AssertErrors().Increment("http://a", "mismatch")
	assertEntries := g.AssertErrors().Snapshot()
	if len(assertEntries) != 1 || assertEntries[0].Count != 1 {
		t.Fatalf("assert error entries = %+v, want one entry with count 1", assertEntries)
	}
}

// globalSumInvariant: the global bundle's TotalRequests must equal the sum
// of every per-endpoint bundle's TotalRequests, since every request is
// folded into exactly one endpoint bundle and the shared global bundle.
func TestGlobalVsPerEndpointCounterSum(t *testing.T) {
	global := NewGlobalBundle()
	epA := NewBundle()
	epB := NewBundle()

	for i := 0; i < 3; i++ {
		global.TotalRequests.Add(1)
		epA.TotalRequests.Add(1)
	}
	for i := 0; i < 5; i++ {
		global.TotalRequests.Add(1)
		epB.TotalRequests.Add(1)
	}

	sum := epA.TotalRequests.Load() + epB.TotalRequests.Load()
	if sum != global.TotalRequests.Load() {
		t.Fatalf("sum of per-endpoint totals = %d, global total = %d", sum, global.TotalRequests.Load())
	}
}

func TestDeriveApiResultRates(t *testing.T) {
	ep := model.Endpoint{Name: "x", URL: "http://x", Method: "GET"}
	snap := BundleSnapshot{TotalRequests: 10, SuccessfulRequests: 8, ErrorCount: 2, TotalResponseBytes: 1024}
	result := DeriveApiResult(ep, 4, snap, 2)

	if result.SuccessRate != 80 {
		t.Fatalf("SuccessRate = %v, want 80", result.SuccessRate)
	}
	if result.ErrorRate != 20 {
		t.Fatalf("ErrorRate = %v, want 20", result.ErrorRate)
	}
	if result.ConcurrentNumber != 4 {
		t.Fatalf("ConcurrentNumber = %d, want 4", result.ConcurrentNumber)
	}
}
