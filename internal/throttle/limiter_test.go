package throttle

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when sleep is called or time is moved explicitly
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	called []time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func call(l *Limiter, c *fakeClock) {
	l.Permit()
	c.called = append(c.called, c.Now())
	l.RecordCall()
}

func TestLimiter_Permit_WithinBudget(t *testing.T) {
	clock := newFakeClock()
	l := New(3, 10*time.Second, WithClock(clock.Now, clock.Sleep))

	call(l, clock)
	call(l, clock)
	call(l, clock)

	assert.Empty(t, clock.slept)
	assert.Equal(t, 3, l.Stats().Calls)
}

func TestLimiter_Permit_WaitsForWindowEnd(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	l := New(2, 10*time.Second, WithClock(clock.Now, clock.Sleep))

	call(l, clock)
	call(l, clock)
	call(l, clock)

	assert.Equal(t, []time.Duration{10 * time.Second}, clock.slept)
	assert.GreaterOrEqual(t, clock.called[2].Sub(start), 10*time.Second)
	assert.Equal(t, 1, l.Stats().Calls)
	assert.Equal(t, uint64(1), l.Stats().Waits)
}

func TestLimiter_Permit_SleepsOnlyRemainder(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second, WithClock(clock.Now, clock.Sleep))

	call(l, clock)
	clock.Advance(4 * time.Second)
	call(l, clock)
	call(l, clock)

	assert.Equal(t, []time.Duration{6 * time.Second}, clock.slept)
}

func TestLimiter_Permit_ElapsedWindowResets(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second, WithClock(clock.Now, clock.Sleep))

	call(l, clock)
	call(l, clock)
	clock.Advance(11 * time.Second)
	call(l, clock)

	assert.Empty(t, clock.slept)
	assert.Equal(t, 1, l.Stats().Calls)
	assert.Equal(t, clock.called[2], l.Stats().WindowStart)
}

func TestLimiter_Permit_NoCarryOver(t *testing.T) {
	clock := newFakeClock()
	l := New(3, 10*time.Second, WithClock(clock.Now, clock.Sleep))

	// one call in the first window leaves two unused; they are not carried over
	call(l, clock)
	clock.Advance(10 * time.Second)
	call(l, clock)
	call(l, clock)
	call(l, clock)
	call(l, clock)

	assert.Equal(t, []time.Duration{10 * time.Second}, clock.slept)
}

func TestLimiter_Permit_WithoutRecordUnderCounts(t *testing.T) {
	clock := newFakeClock()
	l := New(1, 10*time.Second, WithClock(clock.Now, clock.Sleep))

	l.Permit()
	l.Permit()
	l.Permit()

	assert.Empty(t, clock.slept)
	assert.Equal(t, 0, l.Stats().Calls)
}

func TestNew_NonPositiveMaxCalls(t *testing.T) {
	l := New(0, time.Second)
	assert.Equal(t, 1, l.Stats().MaxCalls)
}

// TestProperty_RateInvariant checks that no limiter window ever records
// more than maxCalls calls, for arbitrary call spacing.
func TestProperty_RateInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("calls per window never exceed max", prop.ForAll(
		func(maxCalls int, windowSec int, gapsMs []int) bool {
			clock := newFakeClock()
			created := clock.Now()
			window := time.Duration(windowSec) * time.Second
			l := New(maxCalls, window, WithClock(clock.Now, clock.Sleep))

			for _, gap := range gapsMs {
				clock.Advance(time.Duration(gap) * time.Millisecond)
				call(l, clock)
			}

			// A window opens at creation and a call landing at or after
			// start+window opens the next one.
			windowStart := created
			inWindow := 0
			for _, at := range clock.called {
				if at.Sub(windowStart) >= window {
					windowStart = at
					inWindow = 0
				}
				inWindow++
				if inWindow > maxCalls {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 30),
		gen.SliceOfN(60, gen.IntRange(0, 3000)),
	))

	properties.TestingRun(t)
}
