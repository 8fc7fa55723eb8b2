// Package hostmetrics samples host CPU/memory/load for diagnostic
// logging only (SPEC_FULL.md §2.2) — it is never part of the
// model.BatchResult wire contract. Grounded on the teacher's use of
// gopsutil for process/host introspection (go.mod's
// shirou/gopsutil/v3 require, previously consumed by the deleted
// control-plane fleet-health checks).
package hostmetrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is one diagnostic reading. Zero values mean the underlying
// gopsutil call failed (e.g. unsupported platform) and were skipped,
// not that the host is idle.
type Sample struct {
	CPUPercent  float64
	MemUsedPct  float64
	Load1       float64
	SampleError error
}

// Take gathers one Sample. Errors from individual gopsutil calls are
// folded into the first non-nil SampleError rather than aborting the
// whole sample — a missing load-average on a platform that doesn't
// support it shouldn't suppress CPU/memory numbers.
func Take(ctx context.Context) Sample {
	var s Sample

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	} else if err != nil {
		s.SampleError = err
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemUsedPct = vm.UsedPercent
	} else if s.SampleError == nil {
		s.SampleError = err
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
	} else if s.SampleError == nil {
		s.SampleError = err
	}

	return s
}
