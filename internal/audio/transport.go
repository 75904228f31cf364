package audio

import (
	"sync"
	"time"

	"github.com/cwchanap/virgo/internal/timing"
)

// Player is the audio backend a transport schedules. Times are seconds on
// the backend's own device clock.
type Player interface {
	Load(path string) error
	Duration() float64
	Position() float64
	DeviceNow() float64
	ScheduleStart(deviceTime float64)
	Pause()
	Rewind()
}

// Transport aligns BGM playback with the wall-clock references the playback
// coordinator hands out. Loading runs in the background; a track that cannot
// be loaded leaves the session metronome-only instead of failing it.
type Transport struct {
	player Player

	mu       sync.Mutex
	loadDone chan struct{}
	loadErr  error
	pending  *timing.OneShot

	onInterruption func(bool)

	now func() time.Time
}

// NewTransport wraps a player with no load in flight.
func NewTransport(p Player) *Transport {
	done := make(chan struct{})
	close(done)
	return &Transport{player: p, loadDone: done, now: time.Now}
}

// Load decodes the track at path in the background. Starts scheduled while
// the load is in flight fire once it finishes.
func (t *Transport) Load(path string) {
	done := make(chan struct{})
	t.mu.Lock()
	t.loadDone = done
	t.loadErr = nil
	t.mu.Unlock()
	go func() {
		err := t.player.Load(path)
		t.mu.Lock()
		t.loadErr = err
		t.mu.Unlock()
		close(done)
	}()
}

// Wait blocks until any in-flight load has finished.
func (t *Transport) Wait() {
	t.mu.Lock()
	done := t.loadDone
	t.mu.Unlock()
	<-done
}

// Err reports the load failure that degraded the session to metronome-only.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadErr
}

// ScheduleStart maps the wall-clock reference onto the device clock and
// schedules the track there, delayed by leadInSeconds. Resumes pass the
// remaining lead-in and find the player at a non-zero position.
func (t *Transport) ScheduleStart(reference time.Time, leadInSeconds float64) {
	cell := &timing.OneShot{}
	t.mu.Lock()
	if t.pending != nil {
		t.pending.TryComplete()
	}
	t.pending = cell
	done := t.loadDone
	t.mu.Unlock()
	go t.fire(cell, done, reference, leadInSeconds)
}

// fire completes a scheduled start once the load has settled. The cell
// guarantees that a start and its cancellation cannot both win.
func (t *Transport) fire(cell *timing.OneShot, done chan struct{}, reference time.Time, leadInSeconds float64) {
	<-done
	t.mu.Lock()
	err := t.loadErr
	t.mu.Unlock()
	if err != nil {
		return
	}
	if !cell.TryComplete() {
		return
	}
	deviceTime := t.player.DeviceNow() + reference.Sub(t.now()).Seconds() + leadInSeconds
	t.player.ScheduleStart(deviceTime)
}

// Pause cancels any pending start and freezes the track.
func (t *Transport) Pause() {
	t.mu.Lock()
	if t.pending != nil {
		t.pending.TryComplete()
		t.pending = nil
	}
	t.mu.Unlock()
	t.player.Pause()
}

// Rewind resets the track to its beginning.
func (t *Transport) Rewind() {
	t.player.Rewind()
}

// Duration returns the loaded track length in seconds, 0 before a load.
func (t *Transport) Duration() float64 {
	return t.player.Duration()
}

// SetInterruptionHandler registers a callback invoked when the output device
// is lost (true) or restored (false). The host pauses the session on loss.
func (t *Transport) SetInterruptionHandler(fn func(suspended bool)) {
	t.mu.Lock()
	t.onInterruption = fn
	t.mu.Unlock()
}

// NotifyInterruption forwards a device interruption to the registered handler.
func (t *Transport) NotifyInterruption(suspended bool) {
	t.mu.Lock()
	fn := t.onInterruption
	t.mu.Unlock()
	if fn != nil {
		fn(suspended)
	}
}
