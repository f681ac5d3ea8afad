// Package throttle enforces a fixed-window call budget for callers of
// rate-limited external services.
package throttle

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/metrics"
)

// Limiter allows at most maxCalls calls per fixed window.
//
// Usage:
//
//	limiter.Permit()
//	... perform the call ...
//	limiter.RecordCall()
//
// Permit does not queue waiters; concurrent callers must serialize
// externally. The mutex only guards Stats readers.
type Limiter struct {
	mu sync.Mutex

	maxCalls int
	window   time.Duration

	calls       int
	windowStart time.Time
	waits       uint64

	now   func() time.Time
	sleep func(time.Duration)
	log   *zap.Logger
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces the time source and the sleep function
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) {
		l.log = log
	}
}

// New creates a limiter allowing maxCalls calls per window
func New(maxCalls int, window time.Duration, opts ...Option) *Limiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}

	l := &Limiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
		sleep:    time.Sleep,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.windowStart = l.now()

	return l
}

// Permit blocks until one more call fits into the current window.
// The wait cannot be interrupted.
func (l *Limiter) Permit() {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.reset(now)
	}

	if l.calls < l.maxCalls {
		l.mu.Unlock()
		return
	}

	remaining := l.window - now.Sub(l.windowStart)
	l.waits++
	l.mu.Unlock()

	l.log.Debug("Call budget exhausted, waiting for next window",
		zap.Int("max_calls", l.maxCalls),
		zap.Duration("wait", remaining))

	metrics.ThrottleWaits.Inc()
	metrics.ThrottleWaitSeconds.Observe(remaining.Seconds())
	l.sleep(remaining)

	l.mu.Lock()
	l.reset(l.now())
	l.mu.Unlock()
}

// RecordCall counts one issued call against the current window
func (l *Limiter) RecordCall() {
	l.mu.Lock()
	l.calls++
	calls := l.calls
	l.mu.Unlock()

	l.log.Debug("Call recorded", zap.Int("calls_in_window", calls))
}

func (l *Limiter) reset(now time.Time) {
	l.calls = 0
	l.windowStart = now
}

// Stats describes the limiter state
type Stats struct {
	MaxCalls    int           `json:"max_calls"`
	Window      time.Duration `json:"window"`
	Calls       int           `json:"calls_in_window"`
	WindowStart time.Time     `json:"window_start"`
	Waits       uint64        `json:"waits"`
}

// Stats returns a snapshot of the limiter state
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		MaxCalls:    l.maxCalls,
		Window:      l.window,
		Calls:       l.calls,
		WindowStart: l.windowStart,
		Waits:       l.waits,
	}
}
