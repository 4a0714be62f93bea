// Package flow holds the ambient stack shared by the channel package:
// a minimal structured Logger, an ErrorHandler policy, and retry/backoff
// helpers for use around produce/consume callbacks. None of this is
// channel-specific; it is the same small surface the teacher library
// exposes for every processing stage.
package flow
