// Package live publishes 1Hz snapshots of an in-progress run, matching
// original_source/src/core/status_share.rs's lazy_static queues and
// share_test_results_periodically.rs's ticker loop, reworked into
// process-global ambient state guarded by sync.Once instead of
// lazy_static, and a single-slot evict-on-publish mailbox in place of the
// Rust source's length-≤1 VecDeque (SPEC_FULL.md §4.8: a live consumer
// only ever wants the most recent snapshot, never a backlog).
package live

import "sync"

// Queue is a single-slot mailbox: Publish always overwrites whatever is
// there, Take empties it. A slow or absent consumer never causes
// backpressure on the publisher, and the slot never holds more than one
// value.
type Queue[T any] struct {
	mu    sync.Mutex
	value *T
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Publish(v T) {
	q.mu.Lock()
	q.value = &v
	q.mu.Unlock()
}

// Take returns the current value and clears the slot, or ok=false if
// nothing has been published since the last Take.
func (q *Queue[T]) Take() (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.value == nil {
		return value, false
	}
	value, q.value = *q.value, nil
	return value, true
}

// Peek returns the current value without clearing the slot.
func (q *Queue[T]) Peek() (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.value == nil {
		return value, false
	}
	return *q.value, true
}
