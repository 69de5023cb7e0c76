package tcc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DispatchOrigin identifies how a dispatched blocking operation concluded.
type DispatchOrigin int

const (
	// DispatchCompleted means the closure returned a value.
	DispatchCompleted DispatchOrigin = iota

	// DispatchFailed means the closure itself returned an error.
	DispatchFailed

	// DispatchAborted means the closure panicked and was caught at the worker boundary.
	DispatchAborted
)

func (do DispatchOrigin) String() string {
	switch do {
	case DispatchCompleted:
		return "completed"
	case DispatchFailed:
		return "failed"
	case DispatchAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// DispatchOutcome is the single result of running a blocking closure.
type DispatchOutcome struct {
	Value  interface{}
	Err    error
	Origin DispatchOrigin
}

// DispatchResult is the caller side of an in-flight blocking operation.
type DispatchResult struct {
	outcome chan DispatchOutcome
}

// Await suspends the caller until the worker finishes or ctx is done.
// On ctx done the worker is NOT interrupted (blocking native calls can't be
// preempted safely); the closure runs to completion in the background and
// its outcome is discarded via Discard.
func (dr *DispatchResult) Await(ctx context.Context) (DispatchOutcome, error) {
	select {
	case outcome := <-dr.outcome:
		return outcome, nil
	case <-ctx.Done():
		return DispatchOutcome{}, fmt.Errorf("%w: %v", ErrDispatchAbandoned, ctx.Err())
	}
}

// Discard collects the eventual outcome of an abandoned operation on a
// background goroutine and hands it to the optional observer.
func (dr *DispatchResult) Discard(observe func(DispatchOutcome)) {
	go func() {
		outcome := <-dr.outcome
		if observe != nil {
			observe(outcome)
		}
	}()
}

// BlockingDispatcher runs blocking closures on a bounded set of worker
// goroutines kept separate from the caller's goroutines. Explicitly
// constructed and owned; there is no ambient process-wide instance.
type BlockingDispatcher struct {
	maxWorkerCount int64
	workerSlots    *semaphore.Weighted
	logger         zerolog.Logger

	wg        sync.WaitGroup
	inFlight  int64
	shutdown  int32
	closeOnce sync.Once
}

// NewBlockingDispatcher creates a dispatcher with a hard cap on concurrently
// running blocking closures. Submissions beyond the cap queue (backpressure)
// instead of spawning unbounded workers.
func NewBlockingDispatcher(maxWorkerCount uint64, logger zerolog.Logger) (*BlockingDispatcher, error) {
	if maxWorkerCount == 0 {
		return nil, errors.New("dispatcher maxworkercount can't be 0")
	}

	return &BlockingDispatcher{
		maxWorkerCount: int64(maxWorkerCount),
		workerSlots:    semaphore.NewWeighted(int64(maxWorkerCount)),
		logger:         logger,
	}, nil
}

// Dispatch submits a blocking closure for execution on a worker goroutine.
// Blocks while all worker slots are busy; ctx bounds that wait. Exactly one
// DispatchOutcome is produced per accepted submission, even on panic.
func (bd *BlockingDispatcher) Dispatch(ctx context.Context, work func() (interface{}, error)) (*DispatchResult, error) {
	if atomic.LoadInt32(&bd.shutdown) == 1 {
		return nil, ErrDispatcherShutdown
	}

	if err := bd.workerSlots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	// Recheck after acquiring, shutdown may have raced the slot wait.
	if atomic.LoadInt32(&bd.shutdown) == 1 {
		bd.workerSlots.Release(1)
		return nil, ErrDispatcherShutdown
	}

	result := &DispatchResult{
		outcome: make(chan DispatchOutcome, 1),
	}

	bd.wg.Add(1)
	atomic.AddInt64(&bd.inFlight, 1)

	go func() {
		defer bd.wg.Done()
		defer bd.workerSlots.Release(1)
		defer atomic.AddInt64(&bd.inFlight, -1)

		result.outcome <- bd.runGuarded(work)
	}()

	return result, nil
}

// Execute is a convenience wrapper that dispatches and awaits in one call.
// Abandoned outcomes are discarded to the dispatcher log.
func (bd *BlockingDispatcher) Execute(ctx context.Context, work func() (interface{}, error)) (DispatchOutcome, error) {
	result, err := bd.Dispatch(ctx, work)
	if err != nil {
		return DispatchOutcome{}, err
	}

	outcome, err := result.Await(ctx)
	if err != nil {
		result.Discard(func(discarded DispatchOutcome) {
			bd.logger.Warn().
				Str("origin", discarded.Origin.String()).
				Msg("discarded outcome of abandoned blocking operation")
		})
		return DispatchOutcome{}, err
	}

	return outcome, nil
}

// runGuarded converts worker panics into Aborted outcomes so a fault inside
// a blocking closure can never crash the process or lose the caller.
func (bd *BlockingDispatcher) runGuarded(work func() (interface{}, error)) (outcome DispatchOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = DispatchOutcome{
				Origin: DispatchAborted,
				Err:    fmt.Errorf("%w: %v", ErrDispatchAborted, rec),
			}
		}
	}()

	value, err := work()
	if err != nil {
		return DispatchOutcome{Origin: DispatchFailed, Err: err}
	}

	return DispatchOutcome{Origin: DispatchCompleted, Value: value}
}

// InFlightCount reports how many blocking closures are currently running.
func (bd *BlockingDispatcher) InFlightCount() int64 {
	return atomic.LoadInt64(&bd.inFlight)
}

// MaxWorkerCount reports the worker cap the dispatcher was built with.
func (bd *BlockingDispatcher) MaxWorkerCount() int64 {
	return bd.maxWorkerCount
}

// Shutdown rejects new submissions and waits for running workers to finish.
func (bd *BlockingDispatcher) Shutdown() {
	if bd == nil {
		return
	}

	bd.closeOnce.Do(func() {
		atomic.StoreInt32(&bd.shutdown, 1)
		bd.wg.Wait()
	})
}
