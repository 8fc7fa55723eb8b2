// Package orchestrator runs a full load-generation batch end to end:
// plan, spawn workers and a publisher, join, and return the final
// snapshot. Grounded on internal/vu/engine.go's Start/Stop/drainAllVUs
// orchestration sequence and on original_source/src/core/batch.rs and
// execute.rs for the Go analog of the Rust run_batch/run entry points.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/qyzhg/atomic-bomb-engine/internal/concurrency"
	"github.com/qyzhg/atomic-bomb-engine/internal/errs"
	"github.com/qyzhg/atomic-bomb-engine/internal/live"
	"github.com/qyzhg/atomic-bomb-engine/internal/logging"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
	"github.com/qyzhg/atomic-bomb-engine/internal/otelmetrics"
	"github.com/qyzhg/atomic-bomb-engine/internal/oteltrace"
	"github.com/qyzhg/atomic-bomb-engine/internal/pipeline"
	"github.com/qyzhg/atomic-bomb-engine/internal/planner"
	"github.com/qyzhg/atomic-bomb-engine/internal/sleepguard"
	"github.com/qyzhg/atomic-bomb-engine/internal/stats"
	"github.com/qyzhg/atomic-bomb-engine/internal/worker"
)

// Options configures one Run call beyond the Batch input itself.
type Options struct {
	ResultChan chan<- model.BatchResult
	Metrics    *otelmetrics.Metrics
	Tracer     *oteltrace.Tracer
}

// Option mutates Options; functional-option idiom per SPEC_FULL.md §9
// ("a caller-supplied channel passed into the orchestrator" as the
// documented alternative to the ambient ``internal/live`` queue).
type Option func(*Options)

// WithResultChan gives the caller their own channel for live snapshots,
// alongside (not instead of) the ambient internal/live.Batch() queue.
func WithResultChan(ch chan<- model.BatchResult) Option {
	return func(o *Options) { o.ResultChan = ch }
}

func WithMetrics(m *otelmetrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

func WithTracer(t *oteltrace.Tracer) Option {
	return func(o *Options) { o.Tracer = t }
}

// Run executes SPEC_FULL.md §4.9's lifecycle: acquire the sleep
// inhibitor, plan workers, spawn them plus a publisher, join, build the
// final snapshot, set the stop flag, and return.
func Run(ctx context.Context, batch model.Batch, opts ...Option) (*model.BatchResult, error) {
	options := Options{}
	for _, o := range opts {
		o(&options)
	}
	if options.Metrics == nil {
		options.Metrics = otelmetrics.Noop()
	}
	if options.Tracer == nil {
		options.Tracer = oteltrace.Noop()
	}

	runID := uuid.New().String()
	logger := logging.WithRun(runID)

	guard := sleepguard.Acquire(batch.PreventSleep)
	defer guard.Close()

	p, err := planner.Plan(batch.Endpoints, batch.ConcurrentReqs)
	if err != nil {
		return nil, err
	}

	var controller *concurrency.Controller
	controller, err = concurrency.NewController(p.TotalWorkers(), batch.Step)
	if err != nil {
		return nil, err
	}

	var limiter *concurrency.RateLimiter
	if batch.TargetRPS > 0 {
		limiter = concurrency.NewRateLimiter(batch.TargetRPS)
	}

	global := stats.NewGlobalBundle()
	bundles := make([]*stats.Bundle, len(p.Allocations))
	resultSlots := make([]*atomic.Pointer[model.ApiResult], len(p.Allocations))
	endpointViews := make([]live.EndpointView, len(p.Allocations))

	for i, alloc := range p.Allocations {
		bundles[i] = stats.NewBundle()
		resultSlots[i] = &atomic.Pointer[model.ApiResult]{}
		endpointViews[i] = live.EndpointView{
			Endpoint:          alloc.Endpoint,
			ConcurrentWorkers: alloc.Workers,
			ResultSlot:        resultSlots[i],
		}
	}

	started := time.Now()
	deadline := started.Add(time.Duration(batch.DurationSec) * time.Second)

	ambient := live.Batch()
	ambient.Reset()

	controllerCtx, cancelController := context.WithCancel(ctx)
	defer cancelController()
	go controller.Run(controllerCtx)

	publisherCtx, cancelPublisher := context.WithCancel(ctx)
	defer cancelPublisher()
	go live.RunBatch(publisherCtx, started, global, endpointViews, ambient, options.ResultChan, logger)

	var wg sync.WaitGroup
	var firstFault atomic.Value // holds error

	for i, alloc := range p.Allocations {
		for w := 0; w < alloc.Workers; w++ {
			wg.Add(1)
			idx := i
			deps := pipeline.Deps{
				Metrics: options.Metrics,
				Tracer:  options.Tracer,
				Limiter: limiter,
				RunID:   runID,
				Verbose: batch.Verbose,
			}
			go func() {
				defer wg.Done()
				ep := endpointViews[idx].Endpoint
				if err := worker.Pump(ctx, deadline, controller, &ep, bundles[idx], global, resultSlots[idx], alloc.Workers, deps); err != nil {
					firstFault.CompareAndSwap(nil, err)
					logger.Error().Err(err).Str("endpoint", ep.Name).Msg("worker fault")
				}
			}()
		}
	}

	wg.Wait()
	cancelController()
	cancelPublisher()

	elapsed := time.Since(started).Seconds()
	result := buildFinalResult(global, endpointViews, elapsed)

	ambient.Stop()

	if fault, ok := firstFault.Load().(error); ok && fault != nil {
		logger.Warn().Err(fault).Msg("run completed with at least one worker fault")
	}

	return &result, nil
}

// RunSingle is Run's single-endpoint convenience-mode counterpart
// (SPEC_FULL.md §6): one endpoint, the model.TestResult snapshot shape,
// and the internal/live.Single() ambient queue rather than Batch()'s.
func RunSingle(ctx context.Context, ep model.Endpoint, concurrentReqs, durationSec int, verbose bool, opts ...Option) (*model.TestResult, error) {
	options := Options{}
	for _, o := range opts {
		o(&options)
	}
	if options.Metrics == nil {
		options.Metrics = otelmetrics.Noop()
	}
	if options.Tracer == nil {
		options.Tracer = oteltrace.Noop()
	}

	runID := uuid.New().String()
	logger := logging.WithRun(runID)
	logger = logging.WithEndpoint(logger, ep.Name)

	p, err := planner.Plan([]model.Endpoint{ep}, concurrentReqs)
	if err != nil {
		return nil, err
	}

	controller, err := concurrency.NewController(p.TotalWorkers(), nil)
	if err != nil {
		return nil, err
	}

	bundle := stats.NewBundle()
	resultSlot := &atomic.Pointer[model.ApiResult]{}

	started := time.Now()
	deadline := started.Add(time.Duration(durationSec) * time.Second)

	ambient := live.Single()
	ambient.Reset()

	publisherCtx, cancelPublisher := context.WithCancel(ctx)
	defer cancelPublisher()

	global := stats.NewGlobalBundle()
	go live.RunSingle(publisherCtx, started, bundle, global.HTTPErrors(), ambient, nil, logger)

	controllerCtx, cancelController := context.WithCancel(ctx)
	defer cancelController()
	go controller.Run(controllerCtx)

	var wg sync.WaitGroup
	plannedEp := p.Allocations[0].Endpoint
	workers := p.Allocations[0].Workers
	for w := 0; w < workers; w++ {
		wg.Add(1)
		deps := pipeline.Deps{Metrics: options.Metrics, Tracer: options.Tracer, RunID: runID, Verbose: verbose}
		go func() {
			defer wg.Done()
			localEp := plannedEp
			if err := worker.Pump(ctx, deadline, controller, &localEp, bundle, global, resultSlot, workers, deps); err != nil {
				logger.Error().Err(err).Msg("worker fault")
			}
		}()
	}

	wg.Wait()
	cancelController()
	cancelPublisher()

	elapsed := time.Since(started).Seconds()
	snap := bundle.Snapshot()

	var successRate float64
	if snap.TotalRequests > 0 {
		successRate = float64(snap.SuccessfulRequests) / float64(snap.TotalRequests) * 100
	}
	elapsedSafe := elapsed
	if elapsedSafe <= 0 {
		elapsedSafe = 1e-9
	}
	totalKB := float64(snap.TotalResponseBytes) / 1024

	result := &model.TestResult{
		TotalDurationSec:     elapsed,
		SuccessRate:          successRate,
		MedianResponseTimeMs: snap.Median,
		ResponseTime95Ms:     snap.P95,
		ResponseTime99Ms:     snap.P99,
		TotalRequests:        snap.TotalRequests,
		RPS:                  float64(snap.SuccessfulRequests) / elapsedSafe,
		MaxResponseTimeMs:    snap.MaxLatencyMs,
		MinResponseTimeMs:    snap.MinLatencyMs,
		ErrCount:             snap.ErrorCount,
		TotalDataKB:          totalKB,
		ThroughputPerSecKB:   totalKB / elapsedSafe,
		HTTPErrors:           global.HTTPErrors().Snapshot(),
	}

	ambient.Stop()
	return result, nil
}

func buildFinalResult(global *stats.GlobalBundle, endpoints []live.EndpointView, elapsed float64) model.BatchResult {
	snap := global.Snapshot()

	apiResults := make([]model.ApiResult, 0, len(endpoints))
	for _, ev := range endpoints {
		if r := ev.ResultSlot.Load(); r != nil {
			apiResults = append(apiResults, *r)
		} else {
			apiResults = append(apiResults, stats.DeriveApiResult(ev.Endpoint, ev.ConcurrentWorkers, stats.BundleSnapshot{}, elapsed))
		}
	}

	var successRate, errorRate float64
	if snap.TotalRequests > 0 {
		successRate = float64(snap.SuccessfulRequests) / float64(snap.TotalRequests) * 100
		errorRate = float64(snap.ErrorCount) / float64(snap.TotalRequests) * 100
	}
	elapsedSafe := elapsed
	if elapsedSafe <= 0 {
		elapsedSafe = 1e-9
	}
	rps := float64(snap.SuccessfulRequests) / elapsedSafe
	totalKB := float64(snap.TotalResponseBytes) / 1024
	throughput := totalKB / elapsedSafe

	return model.BatchResult{
		TimestampMs:          time.Now().UnixMilli(),
		TotalDurationSec:     elapsed,
		SuccessRate:          successRate,
		ErrorRate:            errorRate,
		MedianResponseTimeMs: snap.Median,
		ResponseTime95Ms:     snap.P95,
		ResponseTime99Ms:     snap.P99,
		TotalRequests:        snap.TotalRequests,
		SuccessfulRequests:   snap.SuccessfulRequests,
		ErrorCount:           snap.ErrorCount,
		RPS:                  rps,
		MaxResponseTimeMs:    snap.MaxLatencyMs,
		MinResponseTimeMs:    snap.MinLatencyMs,
		TotalDataKB:          totalKB,
		ThroughputPerSecKB:   throughput,
		HTTPErrors:           global.HTTPErrors().Snapshot(),
		AssertErrors:         global.AssertErrors().Snapshot(),
		ApiResults:           apiResults,
	}
}

// ConfigErrorOf is a small helper so callers (CLI, tests) can check
// whether Run's error is a fatal config problem without importing errs
// directly in the common case.
func ConfigErrorOf(err error) (*errs.LoadError, bool) {
	le, ok := err.(*errs.LoadError)
	if !ok {
		return nil, false
	}
	return le, le.Kind == errs.ConfigError
}
