package channel

import (
	"context"
	"time"

	"github.com/fxsml/csp/config"
	"github.com/fxsml/csp/flow"
)

// produceConsumeConfig holds the options ProduceOption/ConsumeOption
// mutate. Produce and Consume share it so the With*Retry and
// With*ErrorHandler options read the same regardless of which one
// they're passed to.
type produceConsumeConfig struct {
	retry        *flow.RetryConfig
	errorHandler flow.ErrorHandler
}

func newProduceConsumeConfig() produceConsumeConfig {
	return produceConsumeConfig{errorHandler: flow.DefaultErrorHandler}
}

// ProduceOption configures retry and error-handling policy around a
// Produce callback.
type ProduceOption func(*produceConsumeConfig)

// ConsumeOption configures retry and error-handling policy around a
// Consume callback.
type ConsumeOption func(*produceConsumeConfig)

// WithProduceRetry makes Produce run fn through flow.Do under cfg,
// retrying a failed call instead of stopping on its first error.
func WithProduceRetry(cfg flow.RetryConfig) ProduceOption {
	return func(c *produceConsumeConfig) { c.retry = &cfg }
}

// WithProduceErrorHandler overrides the policy invoked when fn fails
// after retries (if any) are exhausted. The default,
// flow.DefaultErrorHandler, logs through flow.Default() and stops the
// producer.
func WithProduceErrorHandler(h flow.ErrorHandler) ProduceOption {
	return func(c *produceConsumeConfig) { c.errorHandler = h }
}

// WithProduceRetryFromConfig loads a config.RuntimeConfig (environment
// overrides over config.DefaultRuntimeConfig) and wires its Produce*
// fields into a flow.RetryConfig, same as WithProduceRetry.
func WithProduceRetryFromConfig() ProduceOption {
	rc, err := config.LoadRuntimeConfig()
	if err != nil {
		flow.Default().Warn("produce: failed to load runtime config, using built-in defaults", "error", err)
		rc = config.DefaultRuntimeConfig()
	}
	return WithProduceRetry(flow.RetryConfigFromRuntime(rc))
}

// WithConsumeRetry makes Consume run fn through flow.Do under cfg,
// retrying a failed call instead of stopping on its first error.
func WithConsumeRetry(cfg flow.RetryConfig) ConsumeOption {
	return func(c *produceConsumeConfig) { c.retry = &cfg }
}

// WithConsumeErrorHandler overrides the policy invoked when fn fails
// after retries (if any) are exhausted. The default,
// flow.DefaultErrorHandler, logs through flow.Default() and stops the
// consumer.
func WithConsumeErrorHandler(h flow.ErrorHandler) ConsumeOption {
	return func(c *produceConsumeConfig) { c.errorHandler = h }
}

// WithConsumeRetryFromConfig loads a config.RuntimeConfig (environment
// overrides over config.DefaultRuntimeConfig) and wires its Produce*
// fields into a flow.RetryConfig, same as WithConsumeRetry.
func WithConsumeRetryFromConfig() ConsumeOption {
	rc, err := config.LoadRuntimeConfig()
	if err != nil {
		flow.Default().Warn("consume: failed to load runtime config, using built-in defaults", "error", err)
		rc = config.DefaultRuntimeConfig()
	}
	return WithConsumeRetry(flow.RetryConfigFromRuntime(rc))
}

// Produce starts a loop that calls fn, puts its result, and repeats
// once the put completes. Before each call to fn the loop waits until
// the channel has room (a non-full buffer and no parked puts), giving
// automatic rate-matching to whatever is consuming downstream. On an
// unbuffered channel the put itself still blocks until a take accepts
// the value. The loop stops
// the first time the channel is not OPEN, fn fails (after exhausting
// retries, if WithProduceRetry/WithProduceRetryFromConfig was given),
// or ctx is done; the returned future resolves with the terminating
// error, if any. A failure is reported through the configured
// ErrorHandler (flow.DefaultErrorHandler unless overridden) before the
// loop stops.
func (c *Channel) Produce(ctx context.Context, fn func(context.Context) (any, error), opts ...ProduceOption) *Future[error] {
	cfg := newProduceConsumeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	call := fn
	if cfg.retry != nil {
		retryCfg := *cfg.retry
		call = func(ctx context.Context) (any, error) {
			var v any
			err := flow.Do(ctx, retryCfg, func(ctx context.Context) error {
				var innerErr error
				v, innerErr = fn(ctx)
				return innerErr
			})
			return v, err
		}
	}

	result := NewFuture[error]()
	go func() {
		for {
			select {
			case <-ctx.Done():
				result.Resolve(ctx.Err())
				return
			default:
			}

			if c.State() != StateOpen {
				flow.Default().Debug("produce: channel no longer open, stopping")
				result.Resolve(nil)
				return
			}

			// Call fn only once the channel has room: a non-full buffer
			// and no parked puts. Otherwise wait briefly and re-check ctx
			// and state.
			if c.PutsLen() > 0 || (c.Size() > 0 && c.BufLen() >= c.Size()) {
				select {
				case <-ctx.Done():
				case <-time.After(time.Millisecond):
				}
				continue
			}

			v, err := call(ctx)
			if err != nil {
				cfg.errorHandler(v, err)
				result.Resolve(err)
				return
			}

			pr := c.Put(v).Wait()
			if pr.Err != nil {
				cfg.errorHandler(v, pr.Err)
				result.Resolve(pr.Err)
				return
			}
			if !pr.Accepted {
				flow.Default().Debug("produce: put refused, stopping")
				result.Resolve(nil)
				return
			}
		}
	}()
	return result
}

// Consume starts a loop that takes values and invokes fn on each,
// stopping on the first Done, fn failure (after exhausting retries, if
// WithConsumeRetry/WithConsumeRetryFromConfig was given), or ctx
// cancellation. A failure is reported through the configured
// ErrorHandler (flow.DefaultErrorHandler unless overridden) and
// terminates the loop without touching channel state.
func (c *Channel) Consume(ctx context.Context, fn func(context.Context, any) error, opts ...ConsumeOption) *Future[error] {
	cfg := newProduceConsumeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	call := fn
	if cfg.retry != nil {
		retryCfg := *cfg.retry
		call = func(ctx context.Context, v any) error {
			return flow.Do(ctx, retryCfg, func(ctx context.Context) error {
				return fn(ctx, v)
			})
		}
	}

	result := NewFuture[error]()
	go func() {
		for {
			select {
			case <-ctx.Done():
				result.Resolve(ctx.Err())
				return
			default:
			}

			v := c.Take().Wait()
			if IsDone(v) {
				flow.Default().Debug("consume: channel ended, stopping")
				result.Resolve(nil)
				return
			}
			if err := call(ctx, v); err != nil {
				cfg.errorHandler(v, err)
				result.Resolve(err)
				return
			}
		}
	}()
	return result
}
