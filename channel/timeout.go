package channel

import (
	"sync/atomic"
	"time"

	"github.com/fxsml/csp/flow"

	"github.com/fxsml/csp/config"
)

var defaultTimeoutMS atomic.Int64

func init() {
	rc, err := config.LoadRuntimeConfig()
	if err != nil {
		flow.Default().Warn("channel: failed to load runtime config, using built-in defaults", "error", err)
		rc = config.DefaultRuntimeConfig()
	}
	defaultTimeoutMS.Store(int64(rc.DefaultTimeoutMS))
}

// SetDefaultTimeoutMS overrides the fallback duration Timeout uses
// when called with ms <= 0. It lets an operator change the configured
// default at runtime without re-reading environment variables.
func SetDefaultTimeoutMS(ms int) {
	defaultTimeoutMS.Store(int64(ms))
}

// Timeout yields to the scheduler for the given number of milliseconds
// and returns a Future that resolves once the delay elapses. ms <= 0
// uses the configured default (config.RuntimeConfig.DefaultTimeoutMS,
// loaded once at package init and overridable via the
// CSP_RUNTIME_DEFAULT_TIMEOUT_MS environment variable or
// SetDefaultTimeoutMS) — zero unless an operator has set it, making
// Timeout(0) a pure yield exactly as spec'd by default. It is a
// scheduling primitive, not a cancellation token: the returned Future
// always eventually resolves.
func Timeout(ms int) *Future[struct{}] {
	if ms <= 0 {
		ms = int(defaultTimeoutMS.Load())
	}
	f := NewFuture[struct{}]()
	d := time.Duration(ms) * time.Millisecond
	if d <= 0 {
		go f.Resolve(struct{}{})
		return f
	}
	go func() {
		time.Sleep(d)
		f.Resolve(struct{}{})
	}()
	return f
}
