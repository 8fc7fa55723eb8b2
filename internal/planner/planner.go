// Package planner turns a weighted endpoint list into a fixed worker
// allocation, per SPEC_FULL.md §4.1. Grounded on
// original_source/src/core/batch.rs's weight-to-worker-count rounding and
// check_endpoints_names.rs's name validation (credited in DESIGN.md).
package planner

import (
	"math"

	"github.com/qyzhg/atomic-bomb-engine/internal/config"
	"github.com/qyzhg/atomic-bomb-engine/internal/errs"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

// Allocation pairs one endpoint with its assigned worker count.
type Allocation struct {
	Endpoint model.Endpoint
	Workers  int
}

// WorkerPlan is the full set of allocations for one run.
type WorkerPlan struct {
	Allocations []Allocation
}

// Plan validates the endpoint list and distributes concurrency workers
// across endpoints proportional to weight. Every endpoint gets at least
// one worker regardless of how small its weight is; there is no
// rebalancing pass to reclaim workers from rounding (SPEC_FULL.md §4.1,
// Open Question 2 resolved in DESIGN.md).
func Plan(endpoints []model.Endpoint, concurrency int) (*WorkerPlan, error) {
	if len(endpoints) == 0 {
		return nil, errs.New(errs.ConfigError, "plan", "", errs.ErrEmptyEndpointName)
	}

	seen := make(map[string]struct{}, len(endpoints))
	weightSum := 0
	for _, ep := range endpoints {
		if ep.Name == "" {
			return nil, errs.New(errs.ConfigError, "plan", "", errs.ErrEmptyEndpointName)
		}
		if _, ok := seen[ep.Name]; ok {
			return nil, errs.New(errs.ConfigError, "plan", ep.Name, errs.ErrDuplicateEndpointName)
		}
		seen[ep.Name] = struct{}{}

		if ep.JSONBody != nil && len(ep.FormFields) > 0 {
			return nil, errs.New(errs.ConfigError, "plan", ep.Name, errs.ErrBothJSONAndForm)
		}

		w := ep.Weight
		if w <= 0 {
			w = config.DefaultEndpointWeight
		}
		weightSum += w
	}

	allocations := make([]Allocation, 0, len(endpoints))
	for _, ep := range endpoints {
		w := ep.Weight
		if w <= 0 {
			w = config.DefaultEndpointWeight
		}
		workers := int(math.Round(float64(concurrency) * float64(w) / float64(weightSum)))
		if workers < 1 {
			workers = 1
		}
		allocations = append(allocations, Allocation{Endpoint: ep, Workers: workers})
	}

	return &WorkerPlan{Allocations: allocations}, nil
}

// TotalWorkers sums the plan's per-endpoint worker counts. Because of the
// floor-1 rule this can exceed the requested concurrency when many
// low-weight endpoints are present — callers treat the requested
// concurrency as a target, not a hard cap (SPEC_FULL.md §4.1).
func (p *WorkerPlan) TotalWorkers() int {
	total := 0
	for _, a := range p.Allocations {
		total += a.Workers
	}
	return total
}
