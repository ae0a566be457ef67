// Package retry bounds calls to external collaborators with a per-attempt
// timeout and a small, fixed number of attempts with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinical-rag/internal/contextutil"
)

// Policy configures a bounded retry loop.
type Policy struct {
	// Attempts is the total number of calls made, including the first.
	Attempts int
	// Timeout bounds each attempt. Zero leaves the caller's context untouched.
	Timeout time.Duration
	// BaseDelay is the wait after the first failure; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used at every collaborator boundary unless configured otherwise.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		Timeout:   30 * time.Second,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a permanent error, the parent context
// ends, or the attempt budget is spent.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	logger := contextutil.LoggerFromContext(ctx)

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err := callOnce(ctx, p.Timeout, fn)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		logger.WarnContext(ctx, "collaborator call failed, retrying", "op", op, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

func callOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
