// Package concurrency implements the permit reservoir workers draw from
// before they start their request pump (SPEC_FULL.md §4.2), plus an
// optional global target-RPS cap.
package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/qyzhg/atomic-bomb-engine/internal/errs"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

// Controller is a permit reservoir. Workers call Acquire exactly once, at
// startup, before entering their open-loop pump — they do not re-acquire
// per request. Adapted from internal/vu/rate_limiter.go's InFlightLimiter:
// a sync.Mutex-guarded counter plus sync.Cond, since workers must block
// until *their specific* permit is released, not merely until capacity
// exists (a buffered channel can't express "release exactly N more now").
type Controller struct {
	mu       sync.Mutex
	cond     *sync.Cond
	released int
	acquired int
	total    int

	step *model.StepProfile
}

// NewController builds a controller for total permits, releasing them
// immediately (step == nil) or on the ramp described by step.
func NewController(total int, step *model.StepProfile) (*Controller, error) {
	if step != nil {
		if step.IncreaseStep <= 0 || step.IncreaseIntervalSecond <= 0 {
			return nil, errs.New(errs.ConfigError, "concurrency.NewController", "", errs.ErrInvalidStepProfile)
		}
	}
	c := &Controller{total: total, step: step}
	c.cond = sync.NewCond(&c.mu)
	if step == nil {
		c.released = total
	}
	return c, nil
}

// Acquire blocks until a permit has been released or ctx is cancelled.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released-c.acquired > 0 {
		c.acquired++
		return nil
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.cond.Broadcast()
		case <-done:
		}
	}()
	defer close(done)

	for c.released-c.acquired <= 0 {
		c.cond.Wait()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	c.acquired++
	return nil
}

// Run executes the release schedule for a stepped controller and returns
// once all total permits have been released. For an immediate controller
// (step == nil) all permits were released in NewController and Run
// returns immediately. Intended to run in its own goroutine, started by
// the orchestrator alongside worker spawning (§4.9).
//
// On each tick (including an immediate first tick at t=0) it adds
// increase_step to a fractional accumulator, releases floor(accumulator)
// permits capped by total-already_released, and subtracts the released
// count — so permits are never over-released and cumulative released
// equals total exactly when the loop ends.
func (c *Controller) Run(ctx context.Context) {
	if c.step == nil {
		return
	}

	interval := time.Duration(c.step.IncreaseIntervalSecond) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	accumulator := 0.0
	c.tick(&accumulator)
	if c.allReleased() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(&accumulator)
			if c.allReleased() {
				return
			}
		}
	}
}

func (c *Controller) tick(accumulator *float64) {
	c.mu.Lock()
	*accumulator += c.step.IncreaseStep
	grant := int(*accumulator)
	remaining := c.total - c.released
	if grant > remaining {
		grant = remaining
	}
	if grant > 0 {
		c.released += grant
		*accumulator -= float64(grant)
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

func (c *Controller) allReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released >= c.total
}

// Released reports permits released so far, for tests and diagnostics.
func (c *Controller) Released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
