package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimiter is an optional global target-RPS cap, a token bucket
// adapted directly from internal/vu/rate_limiter.go's RateLimiter. Wired
// into the request pipeline (§4.3 step 6) only when a batch specifies
// target_rps > 0; disabled by default, so it never changes default-path
// semantics. This is open-loop (a fixed external cap), not the
// closed-loop queue-depth control SPEC_FULL.md's Non-goals exclude.
type RateLimiter struct {
	targetRPS  atomic.Value
	tokens     float64
	maxTokens  float64
	lastRefill time.Time
	refillRate float64
	mu         sync.Mutex
	enabled    atomic.Bool
}

func NewRateLimiter(targetRPS float64) *RateLimiter {
	r := &RateLimiter{}
	r.targetRPS.Store(targetRPS)

	if targetRPS <= 0 {
		r.enabled.Store(false)
		return r
	}

	maxTokens := targetRPS
	if maxTokens < 1 {
		maxTokens = 1
	}
	if maxTokens > 10000 {
		maxTokens = 10000
	}

	r.tokens = maxTokens
	r.maxTokens = maxTokens
	r.lastRefill = time.Now()
	r.refillRate = targetRPS
	r.enabled.Store(true)

	return r
}

func (r *RateLimiter) Acquire(ctx context.Context) error {
	if !r.enabled.Load() {
		return nil
	}

	for {
		waitDuration, done := func() (time.Duration, bool) {
			r.mu.Lock()
			defer r.mu.Unlock()

			if !r.enabled.Load() {
				return 0, true
			}

			r.refill()

			if r.tokens >= 1 {
				r.tokens--
				return 0, true
			}

			wait := time.Duration(float64(time.Second) / r.refillRate)
			if wait < 100*time.Microsecond {
				wait = 100 * time.Microsecond
			}
			return wait, false
		}()

		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitDuration):
		}
	}
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now

	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
}

func (r *RateLimiter) Enabled() bool {
	return r.enabled.Load()
}

func (r *RateLimiter) TargetRPS() float64 {
	return r.targetRPS.Load().(float64)
}
