package timing

import (
	"math"
	"testing"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
)

// fakeTime is a manually advanced time source shared by the timing tests.
type fakeTime struct {
	now time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Unix(1000, 0)}
}

func (f *fakeTime) Now() time.Time {
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClockStartAndBeatProgress(t *testing.T) {
	ft := newFakeTime()
	clock := NewClockWithNow(ft.Now)
	if err := clock.Start(120, chart.DefaultTimeSignature); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ft.Advance(time.Second)
	elapsed, ok := clock.PlaybackTime()
	if !ok {
		t.Fatalf("expected playback time while running")
	}
	if !almostEqual(elapsed, 1.0) {
		t.Fatalf("expected elapsed 1.0s, got %v", elapsed)
	}
	beats, ok := clock.BeatProgress()
	if !ok {
		t.Fatalf("expected beat progress while running")
	}
	// 1s at 120 BPM is two beats.
	if !almostEqual(beats, 2.0) {
		t.Fatalf("expected 2 beats, got %v", beats)
	}
}

func TestClockQueriesWhileStopped(t *testing.T) {
	ft := newFakeTime()
	clock := NewClockWithNow(ft.Now)
	if _, ok := clock.PlaybackTime(); ok {
		t.Fatalf("expected no playback time before start")
	}
	if _, ok := clock.BeatProgress(); ok {
		t.Fatalf("expected no beat progress before start")
	}

	if err := clock.Start(120, chart.DefaultTimeSignature); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clock.Stop()
	if _, ok := clock.PlaybackTime(); ok {
		t.Fatalf("expected no playback time after stop")
	}
}

func TestClockStartAtPhaseOffset(t *testing.T) {
	ft := newFakeTime()
	clock := NewClockWithNow(ft.Now)
	reference := ft.Now().Add(50 * time.Millisecond)
	if err := clock.StartAt(120, chart.DefaultTimeSignature, reference, 7); err != nil {
		t.Fatalf("StartAt failed: %v", err)
	}

	ft.Advance(50 * time.Millisecond)
	beats, ok := clock.BeatProgress()
	if !ok {
		t.Fatalf("expected beat progress while running")
	}
	if !almostEqual(beats, 7.0) {
		t.Fatalf("expected beat progress to continue at 7, got %v", beats)
	}

	ft.Advance(500 * time.Millisecond)
	beats, _ = clock.BeatProgress()
	if !almostEqual(beats, 8.0) {
		t.Fatalf("expected beat progress 8 after one more beat, got %v", beats)
	}
}

func TestClockNegativeBeforeReference(t *testing.T) {
	ft := newFakeTime()
	clock := NewClockWithNow(ft.Now)
	reference := ft.Now().Add(time.Second)
	if err := clock.StartAt(100, chart.DefaultTimeSignature, reference, 0); err != nil {
		t.Fatalf("StartAt failed: %v", err)
	}
	elapsed, ok := clock.PlaybackTime()
	if !ok {
		t.Fatalf("expected playback time while running")
	}
	if elapsed >= 0 {
		t.Fatalf("expected negative elapsed before reference, got %v", elapsed)
	}
}

func TestClockStopKeepsReference(t *testing.T) {
	ft := newFakeTime()
	clock := NewClockWithNow(ft.Now)
	if err := clock.Start(90, chart.DefaultTimeSignature); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	reference := clock.ReferenceStart()
	clock.Stop()
	if !clock.ReferenceStart().Equal(reference) {
		t.Fatalf("expected reference time preserved across stop")
	}
}

func TestClockRejectsInvalidConfig(t *testing.T) {
	clock := NewClockWithNow(newFakeTime().Now)
	if err := clock.Start(0, chart.DefaultTimeSignature); err == nil {
		t.Fatalf("expected error for zero bpm")
	}
	if err := clock.Start(-10, chart.DefaultTimeSignature); err == nil {
		t.Fatalf("expected error for negative bpm")
	}
	if err := clock.Start(120, chart.TimeSignature{BeatsPerMeasure: 0, NoteValue: 4}); err == nil {
		t.Fatalf("expected error for zero beats per measure")
	}
	if clock.Running() {
		t.Fatalf("expected clock to stay stopped after rejected start")
	}
}
