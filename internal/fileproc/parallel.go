// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// ErrFileTimeout is recorded for files whose processing exceeded the per-file budget.
var ErrFileTimeout = errors.New("file processing timed out")

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap returns nil (ProcessingErrors doesn't wrap a single error).
func (e *ProcessingErrors) Unwrap() error {
	return nil
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// ErrorFunc is called when a file processing error occurs.
// Receives the file path and the error.
type ErrorFunc func(path string, err error)

// Options tune a parallel run. The zero value uses 2x NumCPU workers, no per-file
// budget and no callbacks.
type Options struct {
	Workers    int
	Timeout    time.Duration
	OnProgress ProgressFunc
	OnError    ErrorFunc
}

// Workers resolves a configured worker count; n <= 0 means 2x NumCPU.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// Map runs fn for every item on a bounded pool and returns the successful results in
// input order. name identifies an item in collected errors. A failing item never stops
// the others; its error is collected and reported through OnError. The returned
// *ProcessingErrors is nil when every item succeeded.
//
// When opts.Timeout is set, each call gets its own deadline. A call still running when
// the deadline passes is abandoned and recorded as ErrFileTimeout.
func Map[I, T any](ctx context.Context, items []I, name func(I) string, fn func(context.Context, I) (T, error), opts Options) ([]T, *ProcessingErrors) {
	if len(items) == 0 {
		return nil, nil
	}

	slots := make([]T, len(items))
	done := make([]bool, len(items))
	errs := &ProcessingErrors{}

	fail := func(item I, err error) {
		errs.Add(name(item), err)
		if opts.OnError != nil {
			opts.OnError(name(item), err)
		}
	}

	p := pool.New().WithMaxGoroutines(Workers(opts.Workers)).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			if opts.OnProgress != nil {
				defer opts.OnProgress()
			}

			// Check for cancellation before processing
			select {
			case <-ctx.Done():
				fail(item, ctx.Err())
				return ctx.Err()
			default:
			}

			result, err := runWithBudget(ctx, item, fn, opts.Timeout)
			if err != nil {
				fail(item, err)
				return nil // Don't stop pool on individual file errors
			}

			slots[i] = result
			done[i] = true
			return nil
		})
	}
	_ = p.Wait() // Context errors are already captured in errs

	results := make([]T, 0, len(items))
	for i, ok := range done {
		if ok {
			results = append(results, slots[i])
		}
	}

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

type outcome[T any] struct {
	value T
	err   error
}

func runWithBudget[I, T any](ctx context.Context, item I, fn func(context.Context, I) (T, error), budget time.Duration) (T, error) {
	if budget <= 0 {
		return fn(ctx, item)
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn(ctx, item)
		ch <- outcome[T]{value: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrFileTimeout, budget)
		}
		return zero, ctx.Err()
	}
}
