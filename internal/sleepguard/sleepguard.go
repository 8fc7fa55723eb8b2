// Package sleepguard prevents the host from sleeping for the duration
// of a run, restored from original_source/src/core/sleep_guard.rs
// (SPEC_FULL.md §2.3 — dropped entirely by the spec.md distillation, not
// excluded by any Non-goal, and reintroduced here in the idiomatic Go
// shape: a Drop impl becomes a Close method released via defer).
package sleepguard

import "io"

// Guard releases whatever sleep-inhibition it acquired when Closed. A
// disabled Guard (Acquire(false)) is a harmless no-op Close.
type Guard interface {
	io.Closer
}

type noopGuard struct{}

func (noopGuard) Close() error { return nil }

// Acquire prevents the host from sleeping if shouldPrevent is true, using
// the platform mechanism implemented in sleepguard_<os>.go. Always
// returns a non-nil Guard; callers should `defer guard.Close()`
// unconditionally.
func Acquire(shouldPrevent bool) Guard {
	if !shouldPrevent {
		return noopGuard{}
	}
	return acquirePlatform()
}
