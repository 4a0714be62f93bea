package config

// RuntimeConfig holds operator-tunable defaults for the channel and
// flow packages: how long a bare Timeout yields by default, and how
// Produce/Consume callbacks should be retried when a caller opts into
// flow.Do around them.
type RuntimeConfig struct {
	// DefaultTimeoutMS is the fallback yield duration, in milliseconds,
	// for callers that don't pass an explicit value to channel.Timeout.
	DefaultTimeoutMS int

	// ProduceMaxAttempts caps retry attempts flow.Do makes around a
	// Produce/Consume callback. Zero keeps flow's own default (3).
	ProduceMaxAttempts int

	// ProduceBackoffMS is the base backoff, in milliseconds, between
	// retried attempts.
	ProduceBackoffMS int

	// ProduceBackoffJitter is the +/- jitter fraction applied to the
	// backoff (0.2 = +/-20%).
	ProduceBackoffJitter float64
}

// DefaultRuntimeConfig returns the built-in defaults, before any
// environment overlay.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DefaultTimeoutMS:     0,
		ProduceMaxAttempts:   3,
		ProduceBackoffMS:     1000,
		ProduceBackoffJitter: 0.2,
	}
}

// LoadRuntimeConfig returns DefaultRuntimeConfig overlaid with any
// CSP_RUNTIME_* environment variables that are set.
func LoadRuntimeConfig() (RuntimeConfig, error) {
	rc := DefaultRuntimeConfig()
	if err := Load("runtime", &rc); err != nil {
		return RuntimeConfig{}, err
	}
	return rc, nil
}
