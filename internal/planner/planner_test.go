package planner

import (
	"errors"
	"testing"

	"github.com/qyzhg/atomic-bomb-engine/internal/errs"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

func TestPlanRejectsEmptyEndpoints(t *testing.T) {
	_, err := Plan(nil, 10)
	if err == nil {
		t.Fatal("expected error for empty endpoint list")
	}
	var le *errs.LoadError
	if !errors.As(err, &le) || le.Kind != errs.ConfigError {
		t.Fatalf("got %v, want ConfigError", err)
	}
}

func TestPlanRejectsEmptyName(t *testing.T) {
	_, err := Plan([]model.Endpoint{{Name: "", URL: "http://x", Weight: 1}}, 10)
	if err == nil {
		t.Fatal("expected error for empty endpoint name")
	}
}

func TestPlanRejectsDuplicateNames(t *testing.T) {
	eps := []model.Endpoint{
		{Name: "a", URL: "http://x", Weight: 1},
		{Name: "a", URL: "http://y", Weight: 1},
	}
	_, err := Plan(eps, 10)
	if err == nil {
		t.Fatal("expected error for duplicate endpoint name")
	}
}

func TestPlanRejectsJSONAndFormTogether(t *testing.T) {
	eps := []model.Endpoint{
		{Name: "a", URL: "http://x", Weight: 1, JSONBody: map[string]any{"k": "v"}, FormFields: []model.FormField{{Key: "k", Value: "v"}}},
	}
	_, err := Plan(eps, 10)
	if err == nil {
		t.Fatal("expected error for endpoint with both json_body and form_fields")
	}
}

// Invariant 5: weight proportional rounding, every endpoint gets at least one worker.
func TestPlanWeightedRoundingFloorsToOne(t *testing.T) {
	eps := []model.Endpoint{
		{Name: "heavy", URL: "http://h", Weight: 99},
		{Name: "light", URL: "http://l", Weight: 1},
	}
	p, err := Plan(eps, 10)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	for _, a := range p.Allocations {
		if a.Workers < 1 {
			t.Fatalf("endpoint %s got %d workers, want >= 1", a.Endpoint.Name, a.Workers)
		}
	}
	if p.Allocations[0].Workers <= p.Allocations[1].Workers {
		t.Fatalf("heavier endpoint should get more workers: %+v", p.Allocations)
	}
}

func TestPlanZeroWeightDefaultsToOne(t *testing.T) {
	eps := []model.Endpoint{
		{Name: "a", URL: "http://a", Weight: 0},
		{Name: "b", URL: "http://b", Weight: 0},
	}
	p, err := Plan(eps, 4)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if p.Allocations[0].Workers != p.Allocations[1].Workers {
		t.Fatalf("equal zero-weight endpoints should split evenly: %+v", p.Allocations)
	}
}

func TestTotalWorkersCanExceedRequestedConcurrency(t *testing.T) {
	eps := []model.Endpoint{
		{Name: "a", URL: "http://a", Weight: 1},
		{Name: "b", URL: "http://b", Weight: 1},
		{Name: "c", URL: "http://c", Weight: 1},
	}
	p, err := Plan(eps, 1)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if p.TotalWorkers() < len(eps) {
		t.Fatalf("TotalWorkers() = %d, want >= %d (floor-1 rule)", p.TotalWorkers(), len(eps))
	}
}
