package flow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/fxsml/csp/config"
)

var (
	// ErrRetry is the base error for retry operations.
	ErrRetry = errors.New("flow retry")

	// ErrRetryMaxAttempts is returned when all retry attempts fail.
	ErrRetryMaxAttempts = fmt.Errorf("%w: max attempts reached", ErrRetry)

	// ErrRetryTimeout is returned when the overall retry operation times out.
	ErrRetryTimeout = fmt.Errorf("%w: timeout reached", ErrRetry)
)

// BackoffFunc returns the wait duration for a retry attempt. attempt
// is one-based: 1 for the first retry, 2 for the second, and so on.
type BackoffFunc func(attempt int) time.Duration

// ConstantBackoff returns a BackoffFunc that waits delay between
// attempts, with jitter in [-jitter, +jitter] applied (0 = none, 0.2 =
// +-20%).
func ConstantBackoff(delay time.Duration, jitter float64) BackoffFunc {
	applyJitter := newApplyJitterFunc(jitter)
	return func(attempt int) time.Duration {
		return applyJitter(delay)
	}
}

// ExponentialBackoff returns a BackoffFunc using
// initialDelay * factor^(attempt-1), capped at maxDelay (0 = no cap)
// and jittered.
func ExponentialBackoff(initialDelay time.Duration, factor float64, maxDelay time.Duration, jitter float64) BackoffFunc {
	applyJitter := newApplyJitterFunc(jitter)
	return func(attempt int) time.Duration {
		backoff := time.Duration(float64(initialDelay) * math.Pow(factor, float64(attempt-1)))
		if maxDelay > 0 && backoff > maxDelay {
			backoff = maxDelay
		}
		return applyJitter(backoff)
	}
}

func newApplyJitterFunc(jitter float64) func(d time.Duration) time.Duration {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return func(d time.Duration) time.Duration {
		factor := 1.0 + (rand.Float64()*2*jitter - jitter)
		return time.Duration(float64(d) * factor)
	}
}

// RetryConfig configures retry behavior around a produce/consume
// callback.
type RetryConfig struct {
	// ShouldRetry decides whether an error should be retried. Nil
	// retries every error.
	ShouldRetry func(error) bool
	// Backoff produces the wait between attempts. Nil defaults to a
	// one-second constant backoff with +-20% jitter.
	Backoff BackoffFunc
	// MaxAttempts caps the total number of attempts, including the
	// first. Zero defaults to 3; negative means unlimited.
	MaxAttempts int
	// Timeout bounds the combined time across all attempts. Zero or
	// negative means no timeout.
	Timeout time.Duration
}

var defaultRetryConfig = RetryConfig{
	Backoff:     ConstantBackoff(1*time.Second, 0.2),
	MaxAttempts: 3,
}

func (c RetryConfig) parsed() RetryConfig {
	if c.ShouldRetry == nil {
		c.ShouldRetry = func(error) bool { return true }
	}
	if c.Backoff == nil {
		c.Backoff = defaultRetryConfig.Backoff
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultRetryConfig.MaxAttempts
	} else if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	return c
}

// RetryConfigFromRuntime builds a RetryConfig from an operator-loaded
// config.RuntimeConfig, letting CSP_RUNTIME_PRODUCE_* environment
// variables steer the backoff and attempt count flow.Do applies around
// a Produce/Consume callback.
func RetryConfigFromRuntime(rc config.RuntimeConfig) RetryConfig {
	return RetryConfig{
		Backoff:     ConstantBackoff(time.Duration(rc.ProduceBackoffMS)*time.Millisecond, rc.ProduceBackoffJitter),
		MaxAttempts: rc.ProduceMaxAttempts,
	}
}

// Do runs fn, retrying per cfg until it succeeds, a non-retryable
// error is returned, MaxAttempts is exhausted, Timeout elapses, or ctx
// is canceled.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.parsed()
	start := time.Now()
	attempt := 0

	for {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !cfg.ShouldRetry(err) {
			return err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%w: %w", ErrRetryMaxAttempts, err)
		}

		var timeoutCh <-chan time.Time
		if cfg.Timeout > 0 {
			remaining := cfg.Timeout - time.Since(start)
			if remaining <= 0 {
				return fmt.Errorf("%w: %s", ErrRetryTimeout, err)
			}
			timeoutCh = time.After(remaining)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeoutCh:
			return fmt.Errorf("%w: %s", ErrRetryTimeout, err)
		case <-time.After(cfg.Backoff(attempt)):
		}
	}
}
