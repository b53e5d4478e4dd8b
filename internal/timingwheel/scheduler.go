package timingwheel

import "time"

// Scheduler turns the generic slot-based TimingWheel into a
// time.Duration-based one-shot callback scheduler. It does not run its
// own goroutine: the caller is expected to invoke Tick() at a steady
// cadence of `resolution`, typically from a select case on a
// time.Ticker alongside the rest of the owning goroutine's periodic
// work (see internal/server's executor loop).
type Scheduler struct {
	wheel      *TimingWheel[func()]
	resolution time.Duration
}

// NewScheduler creates a Scheduler that fires callbacks with a
// granularity of resolution. Sub-resolution delays are rounded up to
// one tick.
func NewScheduler(resolution time.Duration) *Scheduler {
	return &Scheduler{
		wheel:      New[func()](),
		resolution: resolution,
	}
}

// Schedule arranges for fn to be called on some future Tick(), after
// approximately `after` has elapsed.
func (s *Scheduler) Schedule(after time.Duration, fn func()) {
	ticks := int(after / s.resolution)
	if ticks < 1 {
		ticks = 1
	}
	s.wheel.Add(fn, ticks)
}

// Tick advances the wheel by one resolution unit, synchronously
// invoking every callback whose delay has now elapsed.
func (s *Scheduler) Tick() {
	s.wheel.Advance(func(fn func()) { fn() })
}
