// Package lograte rate-limits noisy warning logs — queue-full drops and
// fan-in overflows happen in bursts under backpressure, and logging every
// one of them would itself become a bottleneck. One Limiter instance
// guards one log call site.
package lograte

import (
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRate  = 1 // one log line per second
	defaultBurst = 1
)

// Limiter gates how often its call site may emit a log line.
type Limiter struct {
	l *rate.Limiter
}

// New constructs a Limiter allowing one log line per second.
func New() *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(defaultRate), defaultBurst)}
}

// Allow reports whether the caller may log now.
func (l *Limiter) Allow() bool {
	return l.l.Allow()
}

// Reserve exposes the underlying limiter's delay, for callers that want
// to know how long until the next allowed log rather than just a
// yes/no.
func (l *Limiter) Reserve() time.Duration {
	r := l.l.Reserve()
	if !r.OK() {
		return 0
	}
	d := r.Delay()
	r.Cancel()
	return d
}
