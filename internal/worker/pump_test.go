package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qyzhg/atomic-bomb-engine/internal/concurrency"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
	"github.com/qyzhg/atomic-bomb-engine/internal/pipeline"
	"github.com/qyzhg/atomic-bomb-engine/internal/stats"
)

func TestPumpStopsAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	controller, err := concurrency.NewController(1, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go controller.Run(ctx)

	ep := &model.Endpoint{Name: "e", URL: srv.URL, Method: "GET"}
	bundle := stats.NewBundle()
	global := stats.NewGlobalBundle()
	slot := &atomic.Pointer[model.ApiResult]{}

	deadline := time.Now().Add(200 * time.Millisecond)
	start := time.Now()
	if err := Pump(ctx, deadline, controller, ep, bundle, global, slot, 1, pipeline.Deps{}); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Pump ran for %v past its 200ms deadline", elapsed)
	}

	snap := bundle.Snapshot()
	if snap.TotalRequests == 0 {
		t.Fatal("expected at least one request before the deadline")
	}
}

func TestPumpStopsOnContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	controller, err := concurrency.NewController(1, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go controller.Run(ctx)

	ep := &model.Endpoint{Name: "e", URL: srv.URL, Method: "GET"}
	bundle := stats.NewBundle()
	global := stats.NewGlobalBundle()
	slot := &atomic.Pointer[model.ApiResult]{}

	done := make(chan error, 1)
	go func() {
		done <- Pump(ctx, time.Now().Add(time.Hour), controller, ep, bundle, global, slot, 1, pipeline.Deps{})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Pump() error = %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pump did not return after context cancellation")
	}
}

// A bad method is a WorkerFatal condition (SPEC_FULL.md §4.3); Pump must
// propagate it rather than looping forever.
func TestPumpPropagatesWorkerFatalError(t *testing.T) {
	controller, err := concurrency.NewController(1, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go controller.Run(ctx)

	ep := &model.Endpoint{Name: "e", URL: "http://example.invalid", Method: "GET POST"}
	bundle := stats.NewBundle()
	global := stats.NewGlobalBundle()
	slot := &atomic.Pointer[model.ApiResult]{}

	err = Pump(ctx, time.Now().Add(time.Minute), controller, ep, bundle, global, slot, 1, pipeline.Deps{})
	if err == nil {
		t.Fatal("expected Pump to return the WorkerFatal error")
	}
}
