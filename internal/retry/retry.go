// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry wraps calls to external services (model completions,
// document search) with bounded retries and exponential backoff keyed by
// failure class.
//
// Callers above the Executor never retry on their own. Do blocks; Go runs the
// same loop on a background goroutine and returns a cancellable Future.
// Cancelling the context interrupts a backoff wait immediately and no further
// attempt is made.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/pdiddy/evidence-engine/internal/async"
)

// Attempt describes one call made by the Executor.
type Attempt struct {
	// Number is 1 for the first call.
	Number int

	// Delay is the wait that preceded this call.
	Delay time.Duration

	// Kind is empty when the call succeeded.
	Kind ErrorKind

	Err error
}

// Observer receives every Attempt. Observers travel on the context so one
// Executor can serve many queries.
type Observer func(Attempt)

type observerKey struct{}

// WithObserver returns a context that reports attempts to obs.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

func observerFrom(ctx context.Context) Observer {
	if obs, ok := ctx.Value(observerKey{}).(Observer); ok {
		return obs
	}
	return nil
}

// Executor applies a Policy to operations.
type Executor struct {
	policy Policy
	logger *slog.Logger
	name   string
	sleep  func(context.Context, time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger for attempt records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithName labels attempt records (e.g. "rewrite", "retrieve").
func WithName(name string) Option {
	return func(e *Executor) { e.name = name }
}

// New returns an Executor for p.
func New(p Policy, opts ...Option) *Executor {
	e := &Executor{
		policy: p,
		logger: slog.Default(),
		sleep:  sleepWithContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do calls op until it succeeds, fails with a non-retryable error, or the
// policy's attempts run out. Non-retryable errors are returned unchanged;
// exhaustion returns *ExhaustedError. If ctx ends, ctx.Err() is returned.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero     T
		lastErr  error
		lastKind ErrorKind
		delay    time.Duration
	)

	for n := 1; n <= e.policy.MaxAttempts; n++ {
		if n > 1 {
			// Waits never shrink, even when the failure class changes.
			delay = max(delay, e.policy.Delay(n, lastKind))
			if err := e.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		val, err := op(ctx)
		if err == nil {
			e.record(ctx, Attempt{Number: n, Delay: delay})
			return val, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			e.record(ctx, Attempt{Number: n, Delay: delay, Kind: KindNonRetryable, Err: err})
			return zero, ctxErr
		}

		kind := Classify(err)
		e.record(ctx, Attempt{Number: n, Delay: delay, Kind: kind, Err: err})
		if !e.policy.Retryable(kind) {
			return zero, err
		}
		lastErr, lastKind = err, kind
	}

	return zero, &ExhaustedError{Attempts: e.policy.MaxAttempts, Kind: lastKind, Last: lastErr}
}

// Go runs Do on a background goroutine. Cancelling the Future stops the
// retry loop, including any wait in progress.
func Go[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) *async.Future[T] {
	return async.Run(ctx, func(ctx context.Context) (T, error) {
		return Do(ctx, e, op)
	})
}

func (e *Executor) record(ctx context.Context, a Attempt) {
	attrs := []any{
		slog.Int("attempt", a.Number),
		slog.Int("max_attempts", e.policy.MaxAttempts),
		slog.Duration("delay", a.Delay),
	}
	if e.name != "" {
		attrs = append(attrs, slog.String("call", e.name))
	}
	if a.Err != nil {
		attrs = append(attrs, slog.String("error_kind", string(a.Kind)), slog.String("error", a.Err.Error()))
		e.logger.WarnContext(ctx, "external call failed", attrs...)
	} else {
		e.logger.DebugContext(ctx, "external call succeeded", attrs...)
	}

	if obs := observerFrom(ctx); obs != nil {
		obs(a)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
