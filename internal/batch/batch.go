// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch bounds concurrent outstanding external calls, retries
// transient failures with exponential backoff, and isolates per-item
// failures from the batch.
// Implements: prd008-ideation (R6); docs/ARCHITECTURE § Batch Execution.
package batch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

const defaultMaxRetries = 3

// Executor runs submitted calls under a concurrency bound. Every call
// resolves to exactly one outcome: success or a per-item error.
type Executor struct {
	sem        *semaphore.Weighted
	maxRetries int
	transient  func(error) bool
	logger     *zap.Logger
}

// New builds an Executor. limit bounds concurrent outstanding calls;
// transient classifies retryable errors (nil retries nothing). A
// maxRetries of 0 uses the default (3).
func New(limit int, maxRetries int, transient func(error) bool, logger *zap.Logger) *Executor {
	if limit <= 0 {
		limit = 1
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if transient == nil {
		transient = func(error) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		sem:        semaphore.NewWeighted(int64(limit)),
		maxRetries: maxRetries,
		transient:  transient,
		logger:     logger,
	}
}

// Do runs fn under the concurrency bound, retrying transient failures
// with exponential backoff (base, 2x, 4x, ...). The semaphore is held
// across retries so a retrying item still counts against the limit.
// Non-transient failures return immediately.
func (e *Executor) Do(ctx context.Context, label string, fn func(context.Context) error) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			e.logger.Debug("retrying",
				zap.String("item", label),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !e.transient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", e.maxRetries, lastErr)
}

// Result is the resolved outcome of one submitted item.
type Result[R any] struct {
	// Index is the item's position in the submitted slice.
	Index int

	Value R
	Err   error
}

// Map fans items out under the executor and collects one Result per item,
// in submission order. It never aborts on item failure; the returned
// slice always has len(items) entries, each resolved to a value or an
// error. Map returns only after every outcome is known.
func Map[T, R any](ctx context.Context, e *Executor, items []T, label func(T) string, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			var value R
			err := e.Do(ctx, label(item), func(ctx context.Context) error {
				var ferr error
				value, ferr = fn(ctx, item)
				return ferr
			})
			results[i] = Result[R]{Index: i, Value: value, Err: err}
		}(i, item)
	}
	wg.Wait()

	return results
}
