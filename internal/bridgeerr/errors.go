// Package bridgeerr defines the error taxonomy shared by every bridge
// component: the config layer, the workers, the router, and the
// supervisor all wrap one of these sentinels so callers can distinguish
// "surface this to the operator" from "this is expected and already
// handled locally".
package bridgeerr

import "errors"

var (
	// ErrConfigInvalid marks a malformed pattern, an out-of-range template
	// placeholder, or a mapping referencing an endpoint that does not
	// exist. Always surfaced synchronously to the caller that requested
	// the reconfiguration; never retried.
	ErrConfigInvalid = errors.New("bridgeerr: invalid configuration")

	// ErrConnectionFailed marks a transient per-worker connection failure.
	// Handled locally by the worker's reconnect schedule; reported via
	// worker status, not propagated.
	ErrConnectionFailed = errors.New("bridgeerr: connection failed")

	// ErrQueueFull marks a non-fatal drop at router enqueue or worker wire
	// send. Counted and logged rate-limited, never returned to a caller
	// that would treat it as fatal.
	ErrQueueFull = errors.New("bridgeerr: queue full")

	// ErrCancelled marks an operation aborted by a shutdown signal. This
	// is expected, not an error condition worth alerting on.
	ErrCancelled = errors.New("bridgeerr: cancelled")

	// ErrInternal marks an unreachable invariant violation. It
	// transitions the Supervisor to Errored, which stops it from
	// accepting further reconfiguration until restart. Start also ends in
	// Errored when the loaded configuration is rejected with
	// ErrConfigInvalid.
	ErrInternal = errors.New("bridgeerr: internal invariant violation")
)

// Is reports whether err wraps target per errors.Is. Provided so callers
// outside this package don't need to import "errors" just to check a
// bridge sentinel.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
