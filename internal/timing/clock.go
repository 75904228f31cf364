// Package timing implements the playback core: the beat clock, the
// beat-grouped note schedule, the playback state machine and input matching.
package timing

import (
	"fmt"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
)

// Clock converts a monotonic time reference into beat coordinates for a
// fixed tempo. Its mutable state has a single owner (the coordinator) and
// methods are not safe for concurrent use.
type Clock struct {
	now              func() time.Time
	referenceStart   time.Time
	bpm              float64
	sig              chart.TimeSignature
	running          bool
	phaseOffsetBeats int
}

// NewClock returns a clock reading the system monotonic time.
func NewClock() *Clock {
	return NewClockWithNow(time.Now)
}

// NewClockWithNow returns a clock with an injected time source.
func NewClockWithNow(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Start begins a fresh run at the current time with no phase offset.
func (c *Clock) Start(bpm float64, sig chart.TimeSignature) error {
	return c.StartAt(bpm, sig, c.now(), 0)
}

// StartAt begins a run whose reference time is explicit and possibly in the
// near future, with the beat counter continuing from phaseOffsetBeats. Used
// on resume so the beat count does not jump backward, and for starts
// synchronized with a scheduled audio transport.
func (c *Clock) StartAt(bpm float64, sig chart.TimeSignature, start time.Time, phaseOffsetBeats int) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm must be positive, got %v", bpm)
	}
	if sig.BeatsPerMeasure <= 0 {
		return fmt.Errorf("beats per measure must be positive, got %d", sig.BeatsPerMeasure)
	}
	c.bpm = bpm
	c.sig = sig
	c.referenceStart = start
	c.phaseOffsetBeats = phaseOffsetBeats
	c.running = true
	return nil
}

// Stop halts the clock. The reference time is kept so a caller may capture a
// final reading before the next Start.
func (c *Clock) Stop() {
	c.running = false
}

// Running reports whether the clock is running.
func (c *Clock) Running() bool {
	return c.running
}

// ReferenceStart returns the reference time of the current run. Only
// meaningful while running.
func (c *Clock) ReferenceStart() time.Time {
	return c.referenceStart
}

// SecondsPerBeat returns the beat length for the configured tempo.
func (c *Clock) SecondsPerBeat() float64 {
	return 60.0 / c.bpm
}

// PlaybackTime returns seconds since the reference time. The second return
// is false while the clock is stopped, so callers can tell "not started"
// apart from "at time zero". The value is negative before a near-future
// reference time is reached.
func (c *Clock) PlaybackTime() (float64, bool) {
	if !c.running {
		return 0, false
	}
	return c.now().Sub(c.referenceStart).Seconds(), true
}

// BeatProgress returns the continuous beat count including the carried phase
// offset, or false while stopped.
func (c *Clock) BeatProgress() (float64, bool) {
	elapsed, ok := c.PlaybackTime()
	if !ok {
		return 0, false
	}
	return elapsed/c.SecondsPerBeat() + float64(c.phaseOffsetBeats), true
}
