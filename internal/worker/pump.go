// Package worker runs one endpoint's allocated workers as an open-loop
// request pump until a deadline. Grounded on internal/vu/engine.go's
// spawnVULocked/runSwarmMode (one goroutine per allocated worker slot,
// sync.WaitGroup-joined, per-worker state via atomic.Value) and
// internal/vu/executor.go's Run(ctx) loop shape (acquire-then-loop-
// until-deadline-or-cancel).
package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/qyzhg/atomic-bomb-engine/internal/concurrency"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
	"github.com/qyzhg/atomic-bomb-engine/internal/pipeline"
	"github.com/qyzhg/atomic-bomb-engine/internal/stats"
)

// Pump runs one worker's open loop: acquire a permit once, then send
// requests against endpoint until deadline or ctx cancellation. Workers
// poll now >= deadline between requests; an in-flight request on deadline
// transition is allowed to complete (soft deadline, SPEC_FULL.md §9's
// Open Question resolution), so Pump does not hard-cancel mid-attempt.
//
// Each worker builds its own *http.Client lazily at startup — restored
// literally from original_source/src/core/execute.rs, which builds one
// reqwest::Client per spawned task rather than sharing a pool, since this
// domain's workers are synthetic browsers hitting target URLs, not a
// fleet of control-plane clients (SPEC_FULL.md §2.3).
func Pump(ctx context.Context, deadline time.Time, controller *concurrency.Controller, ep *model.Endpoint, bundle *stats.Bundle, global *stats.GlobalBundle, resultSlot *atomic.Pointer[model.ApiResult], concurrentWorkers int, deps pipeline.Deps) error {
	if err := controller.Acquire(ctx); err != nil {
		return err
	}

	client := newClient(ep)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if time.Now().After(deadline) {
			return nil
		}

		if err := pipeline.Attempt(ctx, ep, client, bundle, global, resultSlot, concurrentWorkers, deps); err != nil {
			return err
		}
	}
}

func newClient(ep *model.Endpoint) *http.Client {
	timeout := time.Duration(ep.TimeoutSec) * time.Second
	if ep.TimeoutSec <= 0 {
		timeout = 0
	}
	return &http.Client{Timeout: timeout}
}
