package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

func TestControllerImmediateReleasesAll(t *testing.T) {
	c, err := NewController(5, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	if c.Released() != 5 {
		t.Fatalf("Released() = %d, want 5", c.Released())
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := c.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
}

func TestControllerRejectsInvalidStep(t *testing.T) {
	if _, err := NewController(5, &model.StepProfile{IncreaseStep: 0, IncreaseIntervalSecond: 1}); err == nil {
		t.Fatal("expected error for non-positive IncreaseStep")
	}
	if _, err := NewController(5, &model.StepProfile{IncreaseStep: 1, IncreaseIntervalSecond: 0}); err == nil {
		t.Fatal("expected error for non-positive IncreaseIntervalSecond")
	}
}

// S6 / invariant 7: a stepped controller releases permits gradually and
// never exceeds its total.
func TestControllerSteppedReleaseNeverExceedsTotal(t *testing.T) {
	step := &model.StepProfile{IncreaseStep: 2, IncreaseIntervalSecond: 1}
	c, err := NewController(5, step)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	go c.Run(ctx)

	// First tick (t=0) releases floor(2) = 2 permits immediately.
	time.Sleep(50 * time.Millisecond)
	if released := c.Released(); released != 2 {
		t.Fatalf("after first tick Released() = %d, want 2", released)
	}

	deadline := time.Now().Add(3 * time.Second)
	for c.Released() < 5 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if c.Released() != 5 {
		t.Fatalf("Released() = %d, want 5 eventually", c.Released())
	}
}

func TestControllerAcquireRespectsContextCancellation(t *testing.T) {
	c, err := NewController(0, &model.StepProfile{IncreaseStep: 1, IncreaseIntervalSecond: 60})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected Acquire to return an error on cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancellation")
	}
}
