// Package retry classifies remote call failures and schedules retries with
// capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// StatusCoder is implemented by errors that carry a structured HTTP status.
// Classification relies on this, never on matching rendered error text.
type StatusCoder interface {
	HTTPStatus() int
}

// Policy decides whether an error is worth retrying and how long to wait
// between attempts. The zero value is not usable; use NewPolicy.
type Policy struct {
	maxAttempts int
	base        float64
	cap         time.Duration
	jitter      func() float64 // returns [0, 1)
}

// Option mutates a Policy during construction.
type Option func(*Policy)

// WithMaxAttempts caps the total number of attempts (first try included).
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBase sets the exponential growth base for the delay sequence.
func WithBase(b float64) Option {
	return func(p *Policy) {
		if b > 1 {
			p.base = b
		}
	}
}

// WithCap bounds the pre-jitter delay.
func WithCap(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.cap = d
		}
	}
}

// WithJitter replaces the jitter source. The function must return [0, 1).
func WithJitter(f func() float64) Option {
	return func(p *Policy) {
		if f != nil {
			p.jitter = f
		}
	}
}

// NewPolicy returns a policy with the default schedule: up to 5 attempts,
// delay = min(1.5^attempt, 15s) plus up to one second of jitter.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts: 5,
		base:        1.5,
		cap:         15 * time.Second,
		jitter:      rand.Float64,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// MaxAttempts reports the configured attempt cap.
func (p *Policy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry reports whether err is a transient failure. Retryable classes:
// rate limiting (429), server-side failures (5xx), request timeouts, and
// timeout-class transport errors. Everything else is terminal.
func (p *Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// Caller cancellation is a control signal, never retried.
	if errors.Is(err, context.Canceled) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		return status == http.StatusTooManyRequests ||
			status == http.StatusRequestTimeout ||
			status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Per-call deadline expiry counts as a timeout.
	return errors.Is(err, context.DeadlineExceeded)
}

// DelayFor computes the wait before retrying after the given zero-based
// attempt: min(base^attempt, cap) seconds plus jitter in [0, 1)s so that
// concurrent tasks do not retry in lockstep.
func (p *Policy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	secs := math.Min(math.Pow(p.base, float64(attempt)), p.cap.Seconds())
	return time.Duration((secs + p.jitter()) * float64(time.Second))
}

// Do runs op until it succeeds, fails terminally, or the attempt cap is
// exhausted, sleeping DelayFor between attempts. Context cancellation is
// observed while waiting and returned as-is.
func (p *Policy) Do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !p.ShouldRetry(err) {
			return err
		}
		if attempt == p.maxAttempts-1 {
			break
		}
		timer := time.NewTimer(p.DelayFor(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
