package live

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/qyzhg/atomic-bomb-engine/internal/config"
	"github.com/qyzhg/atomic-bomb-engine/internal/hostmetrics"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
	"github.com/qyzhg/atomic-bomb-engine/internal/stats"
)

// EndpointView is one endpoint's inputs to a batch snapshot: its
// definition, planned worker count, and the result slot its workers
// publish into (written by internal/pipeline, read-only here).
type EndpointView struct {
	Endpoint          model.Endpoint
	ConcurrentWorkers int
	ResultSlot        *atomic.Pointer[model.ApiResult]
}

// RunBatch ticks once per second, publishing a model.BatchResult snapshot
// into ambient's queue and, if externalCh is non-nil, attempting a
// non-blocking send on it too. Returns when ctx is cancelled or the
// ambient stop flag is set.
//
// The stop flag is checked at the START of every tick, not once before
// entering the loop — an explicit deviation from
// share_test_results_periodically.rs, which samples SHOULD_STOP a single
// time before its `while !should_stop` loop and would otherwise keep
// publishing forever once a run starts (SPEC_FULL.md §4.8).
func RunBatch(ctx context.Context, started time.Time, global *stats.GlobalBundle, endpoints []EndpointView, ambient *AmbientState[model.BatchResult], externalCh chan<- model.BatchResult, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Duration(config.LivePublishIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if ambient.ShouldStop() {
			return
		}

		elapsed := time.Since(started).Seconds()
		snapshot := buildBatchResult(global, endpoints, elapsed)

		ambient.Queue().Publish(snapshot)
		trySend(externalCh, snapshot)

		sample := hostmetrics.Take(ctx)
		logger.Info().
			Float64("elapsed_sec", elapsed).
			Int64("total_requests", snapshot.TotalRequests).
			Float64("rps", snapshot.RPS).
			Float64("cpu_percent", sample.CPUPercent).
			Float64("mem_used_percent", sample.MemUsedPct).
			Msg("live snapshot")
	}
}

func buildBatchResult(global *stats.GlobalBundle, endpoints []EndpointView, elapsed float64) model.BatchResult {
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
	rps := float64(snap.SuccessfulRequests) / elapsedOrEpsilon(elapsed)
	totalKB := float64(snap.TotalResponseBytes) / 1024
	throughput := totalKB / elapsedOrEpsilon(elapsed)

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

// RunSingle is RunBatch's single-endpoint counterpart (SPEC_FULL.md §6's
// convenience mode), publishing model.TestResult snapshots.
func RunSingle(ctx context.Context, started time.Time, bundle *stats.Bundle, httpErrors *stats.HTTPErrorTable, ambient *AmbientState[model.TestResult], externalCh chan<- model.TestResult, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Duration(config.LivePublishIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if ambient.ShouldStop() {
			return
		}

		elapsed := time.Since(started).Seconds()
		snap := bundle.Snapshot()

		var successRate float64
		if snap.TotalRequests > 0 {
			successRate = float64(snap.SuccessfulRequests) / float64(snap.TotalRequests) * 100
		}
		totalKB := float64(snap.TotalResponseBytes) / 1024

		result := model.TestResult{
			TotalDurationSec:     elapsed,
			SuccessRate:          successRate,
			MedianResponseTimeMs: snap.Median,
			ResponseTime95Ms:     snap.P95,
			ResponseTime99Ms:     snap.P99,
			TotalRequests:        snap.TotalRequests,
			RPS:                  float64(snap.SuccessfulRequests) / elapsedOrEpsilon(elapsed),
			MaxResponseTimeMs:    snap.MaxLatencyMs,
			MinResponseTimeMs:    snap.MinLatencyMs,
			ErrCount:             snap.ErrorCount,
			TotalDataKB:          totalKB,
			ThroughputPerSecKB:   totalKB / elapsedOrEpsilon(elapsed),
			HTTPErrors:           httpErrors.Snapshot(),
		}

		ambient.Queue().Publish(result)
		trySend(externalCh, result)

		sample := hostmetrics.Take(ctx)
		logger.Info().
			Float64("elapsed_sec", elapsed).
			Int64("total_requests", result.TotalRequests).
			Float64("rps", result.RPS).
			Float64("cpu_percent", sample.CPUPercent).
			Msg("live snapshot")
	}
}

func elapsedOrEpsilon(elapsed float64) float64 {
	if elapsed <= 0 {
		return 1e-9
	}
	return elapsed
}

// trySend delivers v on ch without blocking the publisher when the
// caller isn't draining it.
func trySend[T any](ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
