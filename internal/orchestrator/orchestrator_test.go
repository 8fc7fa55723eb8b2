package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

// S1: weighted allocation drives worker counts, and both endpoints succeed
// against a server that always answers 200.
func TestRunWeightedAllocationAndSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	batch := model.Batch{
		Endpoints: []model.Endpoint{
			{Name: "a", Weight: 3, URL: srv.URL, Method: "GET"},
			{Name: "b", Weight: 1, URL: srv.URL, Method: "GET"},
		},
		ConcurrentReqs: 4,
		DurationSec:    1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := Run(ctx, batch)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.ApiResults) != 2 {
		t.Fatalf("ApiResults = %d entries, want 2", len(result.ApiResults))
	}
	byName := map[string]model.ApiResult{}
	for _, r := range result.ApiResults {
		byName[r.Name] = r
	}

	if byName["a"].ConcurrentNumber != 3 {
		t.Fatalf("workers(a) = %d, want 3", byName["a"].ConcurrentNumber)
	}
	if byName["b"].ConcurrentNumber != 1 {
		t.Fatalf("workers(b) = %d, want 1", byName["b"].ConcurrentNumber)
	}

	if byName["a"].SuccessRate < 99.9 {
		t.Fatalf("success_rate(a) = %v, want ~100", byName["a"].SuccessRate)
	}
	if byName["b"].SuccessRate < 99.9 {
		t.Fatalf("success_rate(b) = %v, want ~100", byName["b"].SuccessRate)
	}
	if result.ErrorCount != 0 {
		t.Fatalf("global error_count = %d, want 0", result.ErrorCount)
	}
}

// S4: a per-endpoint timeout shorter than the server's response time turns
// every attempt into a transport error (status 0), not a hang.
func TestRunSingleTimeoutProducesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	ep := model.Endpoint{Name: "slow", URL: srv.URL, Method: "GET", TimeoutSec: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := RunSingle(ctx, ep, 2, 1, false)
	if err != nil {
		t.Fatalf("RunSingle() error = %v", err)
	}

	if result.TotalRequests == 0 {
		t.Fatal("expected at least one attempted request")
	}
	if result.SuccessRate != 0 {
		t.Fatalf("SuccessRate = %v, want 0", result.SuccessRate)
	}
	if len(result.HTTPErrors) == 0 {
		t.Fatal("expected transport errors to be recorded")
	}
	for _, e := range result.HTTPErrors {
		if e.StatusCode != 0 {
			t.Fatalf("HTTPErrors entry status = %d, want 0 (transport error)", e.StatusCode)
		}
	}
}

func TestRunSingleZeroDurationStillReturns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ep := model.Endpoint{Name: "e", URL: srv.URL, Method: "GET"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := RunSingle(ctx, ep, 1, 0, false)
	if err != nil {
		t.Fatalf("RunSingle() error = %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil result even for a zero-duration run")
	}
}

func TestRunRejectsInvalidBatchConfig(t *testing.T) {
	batch := model.Batch{
		Endpoints:      []model.Endpoint{{Name: "", URL: "http://example.invalid"}},
		ConcurrentReqs: 1,
		DurationSec:    1,
	}
	_, err := Run(context.Background(), batch)
	if err == nil {
		t.Fatal("expected a config error for an empty endpoint name")
	}
	if _, ok := ConfigErrorOf(err); !ok {
		t.Fatalf("ConfigErrorOf(%v) = false, want true", err)
	}
}
