// Package retry provides a bounded, fixed-interval retry executor for
// outbound provider calls. Only errors classified as transient are
// retried; everything else propagates to the caller unchanged.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/aws/smithy-go"
)

// ErrInvalidConfig is returned by New for a non-positive attempt count or
// a negative wait.
var ErrInvalidConfig = errors.New("invalid retry configuration")

// Sleeper blocks for the given duration between attempts. Tests inject
// their own to assert exact wait sequences without real delay.
type Sleeper func(d time.Duration)

// Executor retries an operation a fixed number of times with a fixed
// wait in between. The wrapped operation must be idempotent or safe to
// repeat; that is the caller's obligation.
type Executor struct {
	attempts        int
	wait            time.Duration
	codes           map[string]struct{}
	allCodes        bool
	classes         []func(error) bool
	allConnectivity bool
	sleep           Sleeper
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleeper replaces the sleep function used between attempts.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithRetryableCodes restricts provider API error retries to the given
// error codes. Without this option every API error is considered
// transient.
func WithRetryableCodes(codes ...string) Option {
	return func(e *Executor) {
		e.allCodes = false
		e.codes = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			e.codes[c] = struct{}{}
		}
	}
}

// WithRetryableClasses retries connectivity errors matching any of the
// given predicates.
func WithRetryableClasses(classes ...func(error) bool) Option {
	return func(e *Executor) { e.classes = classes }
}

// WithAllConnectivityErrors retries every error in the connectivity
// family (timeouts, resets, broken pipes).
func WithAllConnectivityErrors() Option {
	return func(e *Executor) { e.allConnectivity = true }
}

// New builds an Executor running an operation up to attempts times,
// sleeping wait between attempts.
func New(attempts int, wait time.Duration, opts ...Option) (*Executor, error) {
	if attempts < 1 {
		return nil, fmt.Errorf("%w: attempts must be at least 1, got %d", ErrInvalidConfig, attempts)
	}
	if wait < 0 {
		return nil, fmt.Errorf("%w: wait must not be negative, got %v", ErrInvalidConfig, wait)
	}
	e := &Executor{
		attempts: attempts,
		wait:     wait,
		allCodes: true,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Do runs op, retrying transient failures. The first non-retryable
// failure, or the failure of the final attempt, is returned unchanged.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !e.retryable(err) || attempt == e.attempts {
			return err
		}
		e.sleep(e.wait)
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (e *Executor) retryable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if e.allCodes {
			return true
		}
		_, ok := e.codes[apiErr.ErrorCode()]
		return ok
	}
	if !isConnectivityError(err) {
		return false
	}
	if e.allConnectivity {
		return true
	}
	for _, class := range e.classes {
		if class(err) {
			return true
		}
	}
	return false
}

// isConnectivityError reports whether err belongs to the transport-level
// error family, as opposed to an error reported by the provider itself.
func isConnectivityError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
