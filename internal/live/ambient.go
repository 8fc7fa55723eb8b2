package live

import (
	"sync"
	"sync/atomic"

	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

// AmbientState is the process-global queue/stop-flag pair for one mode
// (single-endpoint convenience or batch), mirroring status_share.rs's
// SINGLE_RESULT_QUEUE/SINGLE_SHOULD_STOP and RESULTS_QUEUE/
// RESULTS_SHOULD_STOP — four lazy_static globals there become two
// AmbientState instances here, built lazily via sync.Once rather than
// lazy_static's package-init-time construction.
type AmbientState[T any] struct {
	queue      *Queue[T]
	shouldStop atomic.Bool
}

func newAmbientState[T any]() *AmbientState[T] {
	return &AmbientState[T]{queue: NewQueue[T]()}
}

func (a *AmbientState[T]) Queue() *Queue[T] { return a.queue }

func (a *AmbientState[T]) Stop()            { a.shouldStop.Store(true) }
func (a *AmbientState[T]) Reset()           { a.shouldStop.Store(false) }
func (a *AmbientState[T]) ShouldStop() bool { return a.shouldStop.Load() }

var (
	singleOnce  sync.Once
	singleState *AmbientState[model.TestResult]

	batchOnce  sync.Once
	batchState *AmbientState[model.BatchResult]
)

// Single returns the process-global ambient state for single-endpoint
// convenience runs.
func Single() *AmbientState[model.TestResult] {
	singleOnce.Do(func() { singleState = newAmbientState[model.TestResult]() })
	return singleState
}

// Batch returns the process-global ambient state for batch/multi-endpoint
// runs.
func Batch() *AmbientState[model.BatchResult] {
	batchOnce.Do(func() { batchState = newAmbientState[model.BatchResult]() })
	return batchState
}
