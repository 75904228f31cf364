package timing

import (
	"fmt"
	"math"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
)

// State is the playback session state.
type State int

// Session states. Stopped is both the initial and the post-restart state.
const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateCompleted
)

var stateNames = map[State]string{
	StateStopped:   "stopped",
	StatePlaying:   "playing",
	StatePaused:    "paused",
	StateCompleted: "completed",
}

// String returns the lowercase state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transport is the audio side the coordinator drives. Scheduling is
// fire-and-forget; load failures degrade inside the transport and are
// surfaced to the UI as state, never through the coordinator.
type Transport interface {
	// ScheduleStart begins or resumes playback aligned to the wall-clock
	// reference time, delayed by the remaining silent lead-in.
	ScheduleStart(reference time.Time, leadInSeconds float64)
	Pause()
	Rewind()
}

const (
	// defaultSetupLatency is how far in the future the resume reference time
	// is placed so the audio transport can schedule a synchronized start.
	defaultSetupLatency = 50 * time.Millisecond
	// defaultActiveTolerance is the highlight window around the current
	// discrete beat position, in measure units.
	defaultActiveTolerance = 0.05
)

// CoordinatorConfig wires a playback session together.
type CoordinatorConfig struct {
	BPM           float64
	TimeSig       chart.TimeSignature
	Schedule      *Schedule
	Transport     Transport // optional, nil plays without audio
	TrackDuration float64   // seconds
	BGMLeadIn     float64   // seconds of silence before the music starts

	// ActiveTolerance overrides defaultActiveTolerance when positive.
	ActiveTolerance float64
	// SetupLatency overrides defaultSetupLatency when positive.
	SetupLatency time.Duration
	// Now overrides the time source, for tests.
	Now func() time.Time
}

// Coordinator owns the play/pause/resume/restart/seek-to-end state machine.
// It is the sole writer of the clock and the paused-elapsed accumulator and
// must only be driven from the UI loop; input arriving on other goroutines
// has to be forwarded as messages first.
type Coordinator struct {
	clock     *Clock
	schedule  *Schedule
	transport Transport

	bpm           float64
	sig           chart.TimeSignature
	trackDuration float64
	bgmLeadIn     float64
	tolerance     float64
	setupLatency  time.Duration
	now           func() time.Time

	state         State
	pausedElapsed float64
	totalBeats    int
	lastBeats     int
	measureIndex  int
	beatPosition  float64
	progress      float64
	currentBeat   int
	activeBeatID  uint64
	hasActiveBeat bool
}

// NewCoordinator validates the chart configuration and returns a coordinator
// in the stopped state.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.BPM <= 0 {
		return nil, fmt.Errorf("bpm must be positive, got %v", cfg.BPM)
	}
	if cfg.TimeSig.BeatsPerMeasure <= 0 {
		return nil, fmt.Errorf("beats per measure must be positive, got %d", cfg.TimeSig.BeatsPerMeasure)
	}
	if cfg.Schedule == nil || cfg.Schedule.Len() == 0 {
		return nil, fmt.Errorf("note schedule is empty")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	tolerance := cfg.ActiveTolerance
	if tolerance <= 0 {
		tolerance = defaultActiveTolerance
	}
	setupLatency := cfg.SetupLatency
	if setupLatency <= 0 {
		setupLatency = defaultSetupLatency
	}
	return &Coordinator{
		clock:         NewClockWithNow(now),
		schedule:      cfg.Schedule,
		transport:     cfg.Transport,
		bpm:           cfg.BPM,
		sig:           cfg.TimeSig,
		trackDuration: cfg.TrackDuration,
		bgmLeadIn:     cfg.BGMLeadIn,
		tolerance:     tolerance,
		setupLatency:  setupLatency,
		now:           now,
		lastBeats:     -1,
	}, nil
}

// Clock exposes the session clock for read-only consumers such as the
// metronome and the input matcher's start time.
func (c *Coordinator) Clock() *Clock {
	return c.clock
}

// Start begins playback. A fresh session starts the clock at the current
// time; a paused session resumes with a near-future reference time and a
// phase offset equal to the discrete beats consumed before pause, so the
// beat counter and the rescheduled audio stay in agreement. Playing is a
// no-op.
func (c *Coordinator) Start() error {
	if c.state == StatePlaying {
		return nil
	}
	if c.pausedElapsed > 0 {
		c.totalBeats = int(math.Floor(c.pausedElapsed / c.secondsPerBeat()))
		c.applyBeatDerivedState(c.totalBeats)
		reference := c.now().Add(c.setupLatency)
		if err := c.clock.StartAt(c.bpm, c.sig, reference, c.totalBeats); err != nil {
			return fmt.Errorf("failed to resume clock: %w", err)
		}
		if c.transport != nil {
			c.transport.ScheduleStart(reference, c.remainingLeadIn())
		}
	} else {
		if err := c.clock.Start(c.bpm, c.sig); err != nil {
			return fmt.Errorf("failed to start clock: %w", err)
		}
		if c.transport != nil {
			c.transport.ScheduleStart(c.clock.ReferenceStart(), c.bgmLeadIn)
		}
	}
	c.lastBeats = -1
	c.state = StatePlaying
	return nil
}

// Pause captures the live elapsed time into the accumulator and halts the
// clock and the audio. The clock's own reading is authoritative. The active
// beat highlight is cleared until resume.
func (c *Coordinator) Pause() {
	if c.state != StatePlaying {
		return
	}
	if live, ok := c.clock.PlaybackTime(); ok && live > 0 {
		c.pausedElapsed += live
	}
	c.clock.Stop()
	if c.transport != nil {
		c.transport.Pause()
	}
	c.hasActiveBeat = false
	c.state = StatePaused
}

// Restart zeroes the whole session including the paused-elapsed accumulator.
// If playback was running it starts over immediately, otherwise the session
// is left stopped.
func (c *Coordinator) Restart() error {
	wasPlaying := c.state == StatePlaying
	c.clock.Stop()
	if c.transport != nil {
		c.transport.Pause()
		c.transport.Rewind()
	}
	c.resetCounters()
	c.progress = 0
	c.state = StateStopped
	if wasPlaying {
		return c.Start()
	}
	return nil
}

// Stop ends the session without completing it, as when navigating away.
func (c *Coordinator) Stop() {
	c.clock.Stop()
	if c.transport != nil {
		c.transport.Pause()
	}
	c.resetCounters()
	c.progress = 0
	c.state = StateStopped
}

// SeekToEnd jumps the session straight to the completed state.
func (c *Coordinator) SeekToEnd() {
	if c.state == StateStopped || c.state == StateCompleted {
		return
	}
	c.complete()
}

// Tick advances derived state from a single clock snapshot. It no-ops while
// not playing, while the clock has not reached its reference time, and when
// the track duration is zero. Derived state is only recomputed when the
// discrete beat count changed since the last tick; re-deriving it on every
// fractional delta is wasted work at frame rate.
func (c *Coordinator) Tick() {
	if c.state != StatePlaying {
		return
	}
	live, ok := c.clock.PlaybackTime()
	if !ok || c.trackDuration <= 0 {
		return
	}
	if live < 0 {
		live = 0
	}
	elapsed := c.pausedElapsed + live
	beats := int(math.Floor(elapsed / c.secondsPerBeat()))
	if beats == c.lastBeats {
		return
	}
	c.lastBeats = beats
	c.totalBeats = beats
	c.applyBeatDerivedState(beats)
	c.progress = math.Min(elapsed/c.trackDuration, 1.0)
	if c.progress >= 1.0 {
		c.complete()
	}
}

// applyBeatDerivedState recomputes measure index, quantized beat position,
// the current schedule index and the active beat highlight from a discrete
// beat count.
func (c *Coordinator) applyBeatDerivedState(beats int) {
	perMeasure := c.sig.BeatsPerMeasure
	c.measureIndex = beats / perMeasure
	c.beatPosition = float64(beats%perMeasure) / float64(perMeasure)

	timePosition := float64(beats) / float64(perMeasure)
	c.currentBeat = c.schedule.ClosestIndexAtOrBefore(timePosition)
	c.activeBeatID, c.hasActiveBeat = c.activeBeatAt(timePosition)
}

// activeBeatAt finds the beat within the highlight tolerance of the
// quantized time position. The discretized clock position and a note's
// continuous time position rarely match exactly, hence the window.
func (c *Coordinator) activeBeatAt(timePosition float64) (uint64, bool) {
	if c.schedule.Len() == 0 {
		return 0, false
	}
	idx := c.schedule.ClosestIndexAtOrBefore(timePosition)
	bestID := uint64(0)
	bestDelta := math.Inf(1)
	for _, i := range []int{idx, idx + 1} {
		if i < 0 || i >= c.schedule.Len() {
			continue
		}
		delta := math.Abs(c.schedule.At(i).TimePosition - timePosition)
		if delta <= c.tolerance && delta < bestDelta {
			bestID = c.schedule.At(i).ID
			bestDelta = delta
		}
	}
	if math.IsInf(bestDelta, 1) {
		return 0, false
	}
	return bestID, true
}

// complete stops the clock and audio and zeroes every counter. Unlike
// pause, completion does not preserve position.
func (c *Coordinator) complete() {
	c.clock.Stop()
	if c.transport != nil {
		c.transport.Pause()
	}
	c.resetCounters()
	c.progress = 1
	c.state = StateCompleted
}

func (c *Coordinator) resetCounters() {
	c.pausedElapsed = 0
	c.totalBeats = 0
	c.lastBeats = -1
	c.measureIndex = 0
	c.beatPosition = 0
	c.currentBeat = 0
	c.activeBeatID = 0
	c.hasActiveBeat = false
}

func (c *Coordinator) secondsPerBeat() float64 {
	return c.sig.SecondsPerBeat(c.bpm)
}

// remainingLeadIn returns how much of the silent lead-in is still ahead of
// the resume position.
func (c *Coordinator) remainingLeadIn() float64 {
	remaining := c.bgmLeadIn - c.pausedElapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// State returns the session state.
func (c *Coordinator) State() State {
	return c.state
}

// IsPlaying reports whether the session is in the playing state.
func (c *Coordinator) IsPlaying() bool {
	return c.state == StatePlaying
}

// Progress returns playback progress in [0, 1].
func (c *Coordinator) Progress() float64 {
	return c.progress
}

// TotalBeats returns the discrete beats elapsed including time before pauses.
func (c *Coordinator) TotalBeats() int {
	return c.totalBeats
}

// CurrentBeat returns the index of the current beat in the schedule.
func (c *Coordinator) CurrentBeat() int {
	return c.currentBeat
}

// CurrentMeasureIndex returns the 0-based measure the playhead is in.
func (c *Coordinator) CurrentMeasureIndex() int {
	return c.measureIndex
}

// CurrentBeatPosition returns the quantized position within the measure,
// in [0, 1).
func (c *Coordinator) CurrentBeatPosition() float64 {
	return c.beatPosition
}

// ActiveBeatID returns the highlighted beat id, if any beat is within the
// highlight tolerance of the playhead.
func (c *Coordinator) ActiveBeatID() (uint64, bool) {
	return c.activeBeatID, c.hasActiveBeat
}

// PausedElapsed returns the accumulated elapsed seconds from before the
// current run segment.
func (c *Coordinator) PausedElapsed() float64 {
	return c.pausedElapsed
}

// SongStart returns the wall-clock instant of chart position zero for the
// current run segment, or false while the clock is stopped. The input
// matcher uses it as the time origin so hits and the clock share one
// timeline across resumes.
func (c *Coordinator) SongStart() (time.Time, bool) {
	if !c.clock.Running() {
		return time.Time{}, false
	}
	offset := time.Duration(c.pausedElapsed * float64(time.Second))
	return c.clock.ReferenceStart().Add(-offset), true
}

// ElapsedSeconds returns total musical time consumed, combining the
// accumulator with the live clock when running.
func (c *Coordinator) ElapsedSeconds() float64 {
	if live, ok := c.clock.PlaybackTime(); ok && live > 0 {
		return c.pausedElapsed + live
	}
	return c.pausedElapsed
}

// TrackDuration returns the effective track length in seconds.
func (c *Coordinator) TrackDuration() float64 {
	return c.trackDuration
}
