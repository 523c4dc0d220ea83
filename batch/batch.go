// Package batch runs one asynchronous operation over many inputs with bounded
// concurrency, collecting a per-item outcome instead of failing fast.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight operations when WithConcurrency is not set.
const DefaultConcurrency = 10

// ErrNotStarted marks items that were never started because the context ended first.
var ErrNotStarted = errors.New("batch item not started")

// Outcome is the result of one item. Exactly one of Value or Err is meaningful.
type Outcome[I, R any] struct {
	Index int
	Item  I
	Value R
	Err   error
}

// OK reports whether the item succeeded.
func (o Outcome[I, R]) OK() bool {
	return o.Err == nil
}

type config struct {
	concurrency int
	progress    func(done, total int)
}

// Option configures Run.
type Option func(*config)

// WithConcurrency sets the maximum number of items in flight. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.concurrency = n
		}
	}
}

// WithProgress registers a callback invoked after each item completes.
// Calls are serialized.
func WithProgress(fn func(done, total int)) Option {
	return func(cfg *config) {
		cfg.progress = fn
	}
}

// Run applies op to every item with at most the configured number of calls in
// flight. The returned outcomes are in input order. Item failures, including
// panics, are captured in the outcome and never abort the remaining items.
func Run[I, R any](ctx context.Context, items []I, op func(context.Context, I) (R, error), opts ...Option) []Outcome[I, R] {
	cfg := config{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	outcomes := make([]Outcome[I, R], len(items))
	for i, item := range items {
		outcomes[i] = Outcome[I, R]{Index: i, Item: item}
	}

	var (
		eg   errgroup.Group
		mu   sync.Mutex
		done int
	)
	eg.SetLimit(cfg.concurrency)

	report := func() {
		if cfg.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		cfg.progress(done, len(items))
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			markNotStarted(outcomes[i:], err)
			break
		}

		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = fmt.Errorf("%w: %w", ErrNotStarted, err)
				return nil
			}
			outcomes[i].Value, outcomes[i].Err = call(ctx, op, items[i])
			report()
			return nil
		})
	}

	_ = eg.Wait()
	return outcomes
}

func call[I, R any](ctx context.Context, op func(context.Context, I) (R, error), item I) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch item panicked: %v", r)
		}
	}()
	return op(ctx, item)
}

func markNotStarted[I, R any](outcomes []Outcome[I, R], cause error) {
	for i := range outcomes {
		outcomes[i].Err = fmt.Errorf("%w: %w", ErrNotStarted, cause)
	}
}

// Values returns the values of successful outcomes in input order.
func Values[I, R any](outcomes []Outcome[I, R]) []R {
	var out []R
	for _, o := range outcomes {
		if o.OK() {
			out = append(out, o.Value)
		}
	}
	return out
}

// Failures returns the failed outcomes in input order.
func Failures[I, R any](outcomes []Outcome[I, R]) []Outcome[I, R] {
	var out []Outcome[I, R]
	for _, o := range outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Err joins every item error, or returns nil when all items succeeded.
func Err[I, R any](outcomes []Outcome[I, R]) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("item %d (%v): %w", o.Index, o.Item, o.Err))
		}
	}
	return errors.Join(errs...)
}
