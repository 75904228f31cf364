package timing

import (
	"testing"

	"github.com/cwchanap/virgo/internal/chart"
)

// testBeatsNotes yields beats at time positions 0.0, 0.25, 1.0 and 1.5.
func testBeatsNotes() []chart.Note {
	return []chart.Note{
		{MeasureNumber: 1, MeasureOffset: 0, Drum: chart.BassDrum, Interval: chart.Quarter},
		{MeasureNumber: 1, MeasureOffset: 0.25, Drum: chart.Snare, Interval: chart.Quarter},
		{MeasureNumber: 2, MeasureOffset: 0, Drum: chart.Snare, Interval: chart.Quarter},
		{MeasureNumber: 2, MeasureOffset: 0.5, Drum: chart.Crash, Interval: chart.Quarter},
	}
}

func TestBuildScheduleGroupsSimultaneousNotes(t *testing.T) {
	notes := []chart.Note{
		{MeasureNumber: 1, MeasureOffset: 0, Drum: chart.BassDrum, Interval: chart.Quarter},
		{MeasureNumber: 1, MeasureOffset: 0, Drum: chart.Crash, Interval: chart.Sixteenth},
		{MeasureNumber: 1, MeasureOffset: 0.25, Drum: chart.Snare, Interval: chart.Quarter},
	}
	schedule := BuildSchedule(notes)
	if schedule.Len() != 2 {
		t.Fatalf("expected 2 beats, got %d", schedule.Len())
	}
	first := schedule.At(0)
	if first.TimePosition != 0 {
		t.Fatalf("expected first beat at 0, got %v", first.TimePosition)
	}
	if !first.Drums.Has(chart.BassDrum) || !first.Drums.Has(chart.Crash) {
		t.Fatalf("expected grouped drums, got %v", first.Drums.Drums())
	}
	// The finest subdivision of the group wins.
	if first.Interval != chart.Sixteenth {
		t.Fatalf("expected sixteenth interval, got %v", first.Interval)
	}
	if schedule.At(1).TimePosition != 0.25 {
		t.Fatalf("expected second beat at 0.25, got %v", schedule.At(1).TimePosition)
	}
}

func TestBuildScheduleIDsMonotonic(t *testing.T) {
	first := BuildSchedule(testBeatsNotes())
	for i := 1; i < first.Len(); i++ {
		if first.At(i).ID <= first.At(i-1).ID {
			t.Fatalf("expected ascending ids within a build")
		}
	}
	maxID := first.At(first.Len() - 1).ID

	rebuilt := BuildSchedule(testBeatsNotes())
	for i := 0; i < rebuilt.Len(); i++ {
		if rebuilt.At(i).ID <= maxID {
			t.Fatalf("expected rebuild ids above %d, got %d", maxID, rebuilt.At(i).ID)
		}
	}
}

func TestClosestIndexAtOrBefore(t *testing.T) {
	schedule := BuildSchedule(testBeatsNotes())
	cases := []struct {
		query float64
		want  int
	}{
		{0.9, 1},
		{-1, 0},
		{10, 3},
		{0, 0},
		{0.25, 1},
		{1.0, 2},
		{1.49, 2},
		{1.5, 3},
	}
	for _, tc := range cases {
		if got := schedule.ClosestIndexAtOrBefore(tc.query); got != tc.want {
			t.Fatalf("expected index %d for query %v, got %d", tc.want, tc.query, got)
		}
	}
}

func TestScheduleEmpty(t *testing.T) {
	schedule := BuildSchedule(nil)
	if schedule.Len() != 0 {
		t.Fatalf("expected empty schedule, got %d beats", schedule.Len())
	}
	if got := schedule.ClosestIndexAtOrBefore(1.0); got != 0 {
		t.Fatalf("expected index 0 for empty schedule, got %d", got)
	}
}

func TestBeatMeasureNumber(t *testing.T) {
	schedule := BuildSchedule(testBeatsNotes())
	if got := schedule.At(0).MeasureNumber(); got != 1 {
		t.Fatalf("expected measure 1, got %d", got)
	}
	if got := schedule.At(3).MeasureNumber(); got != 2 {
		t.Fatalf("expected measure 2, got %d", got)
	}
}
