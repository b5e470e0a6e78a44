// Package fileproc provides the bounded worker pool the Task Runner uses
// for fingerprint extraction and pairwise comparison across an internal
// pool.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/plagiscan/engine/internal/progress"
)

// ProcessingError pairs a work item's label with the error it produced.
type ProcessingError struct {
	Label string
	Err   error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Err)
}

// ProcessingErrors collects every ProcessingError from one MapItems call.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

func (e *ProcessingErrors) add(label string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Label: label, Err: err})
	e.mu.Unlock()
}

// HasErrors reports whether any error was collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d items failed (first: %v)", len(e.Errors), e.Errors[0])
	}
}

// DefaultWorkerMultiplier sizes the pool relative to NumCPU: a 2x factor
// suits a mixed I/O/CGO workload, since tree-sitter parsing and store I/O
// both spend time off-CPU waiting.
const DefaultWorkerMultiplier = 2

// Item is one unit of work: a stable label (for error reporting and
// progress ticks) plus whatever the caller's fn needs to process it.
type Item[V any] struct {
	Label string
	Value V
}

// MapItems runs fn over every item concurrently, capped at
// NumCPU*DefaultWorkerMultiplier goroutines, stopping early on ctx
// cancellation. Results are returned in arbitrary order — the engine makes
// no promise about intra-job ordering. A tracker pulled from ctx
// (internal/progress.WithTracker) is ticked once per item regardless of
// success or failure.
func MapItems[V, T any](ctx context.Context, items []Item[V], fn func(context.Context, V) (T, error)) ([]T, *ProcessingErrors) {
	if len(items) == 0 {
		return nil, nil
	}

	maxWorkers := runtime.NumCPU() * DefaultWorkerMultiplier
	results := make([]T, 0, len(items))
	errs := &ProcessingErrors{}
	var mu sync.Mutex

	tracker := progress.TrackerFromContext(ctx)

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for _, item := range items {
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				errs.add(item.Label, ctx.Err())
				if tracker != nil {
					tracker.Tick()
				}
				return nil
			default:
			}

			result, err := fn(ctx, item.Value)
			if err != nil {
				errs.add(item.Label, err)
				if tracker != nil {
					tracker.Tick()
				}
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			if tracker != nil {
				tracker.Tick()
			}
			return nil
		})
	}
	_ = p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
