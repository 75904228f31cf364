package tui

import (
	"testing"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/timing"
)

func testBeats() []timing.Beat {
	return []timing.Beat{
		{ID: 1, TimePosition: 0, Drums: chart.DrumSet(0).Add(chart.Snare)},
		{ID: 2, TimePosition: 0.25, Drums: chart.DrumSet(0).Add(chart.Snare).Add(chart.BassDrum)},
		{ID: 3, TimePosition: 0.5, Drums: chart.DrumSet(0).Add(chart.BassDrum)},
		{ID: 4, TimePosition: 2.0, Drums: chart.DrumSet(0).Add(chart.Snare)},
	}
}

func testLaneView() laneView {
	return laneView{colsPerMeasure: 16, width: 40, playheadCol: 8}
}

func noneConsumed(uint64) chart.DrumSet { return 0 }

func TestLaneCellsPlacesNotesRelativeToPlayhead(t *testing.T) {
	view := testLaneView()
	cells := view.cells(testBeats(), chart.Snare, noneConsumed)
	if len(cells) != 2 {
		t.Fatalf("expected 2 snare cells on the board, got %d", len(cells))
	}
	if cells[0].col != 8 {
		t.Fatalf("expected first note at the playhead column 8, got %d", cells[0].col)
	}
	if cells[1].col != 12 {
		t.Fatalf("expected quarter-note offset at column 12, got %d", cells[1].col)
	}
}

func TestLaneCellsSkipsOffBoardNotes(t *testing.T) {
	// Playhead at measure 3 pushes the opening notes off the left edge.
	view := testLaneView()
	view.playheadPos = 2.0
	cells := view.cells(testBeats(), chart.Snare, noneConsumed)
	if len(cells) != 1 {
		t.Fatalf("expected 1 visible snare cell, got %d", len(cells))
	}
	if cells[0].col != 8 {
		t.Fatalf("expected the measure-3 note at the playhead, got column %d", cells[0].col)
	}
}

func TestLaneCellsMarksConsumedAndActiveNotes(t *testing.T) {
	view := testLaneView()
	view.activeBeat = 2
	view.hasActive = true
	consumed := func(id uint64) chart.DrumSet {
		if id == 1 {
			return chart.DrumSet(0).Add(chart.Snare)
		}
		return 0
	}
	cells := view.cells(testBeats(), chart.Snare, consumed)
	if !cells[0].consumed {
		t.Fatalf("expected the matched note to render consumed")
	}
	if cells[0].active {
		t.Fatalf("expected only the highlighted beat to be active")
	}
	if !cells[1].active {
		t.Fatalf("expected the highlighted beat to render active")
	}
}

func TestLaneRendersCellKinds(t *testing.T) {
	view := laneView{colsPerMeasure: 16, width: 10, playheadCol: 4}
	cells := []laneCell{
		{col: 2, consumed: true},
		{col: 4, active: true},
		{col: 6},
	}
	got := view.lane(cells)
	if got != "  o + *   " {
		t.Fatalf("expected lane %q, got %q", "  o + *   ", got)
	}
}

func TestLaneShowsPlayheadWhenEmpty(t *testing.T) {
	view := laneView{colsPerMeasure: 16, width: 6, playheadCol: 3}
	if got := view.lane(nil); got != "   |  " {
		t.Fatalf("expected bare playhead, got %q", got)
	}
}

func TestRulerNumbersMeasureBoundaries(t *testing.T) {
	view := testLaneView()
	got := view.ruler(2)
	want := "        1               2               "
	if got != want {
		t.Fatalf("expected ruler %q, got %q", want, got)
	}
}

func TestRulerScrollsWithPlayhead(t *testing.T) {
	view := testLaneView()
	view.playheadPos = 0.5
	got := view.ruler(2)
	// Measure 1 sits half a measure left of the playhead, measure 2 half
	// a measure right.
	want := "1       |       2               3       "
	if got != want {
		t.Fatalf("expected ruler %q, got %q", want, got)
	}
}

func TestScheduleDrumsReturnsDisplayOrder(t *testing.T) {
	drums := scheduleDrums(testBeats())
	if len(drums) != 2 {
		t.Fatalf("expected 2 drums in schedule, got %d", len(drums))
	}
	if drums[0] != chart.Snare || drums[1] != chart.BassDrum {
		t.Fatalf("expected snare before bass in display order, got %v", drums)
	}
}

func TestRenderProgressBar(t *testing.T) {
	if got := renderProgressBar(0.5, 8); got != "====----" {
		t.Fatalf("expected half-filled bar, got %q", got)
	}
	if got := renderProgressBar(-1, 4); got != "----" {
		t.Fatalf("expected empty bar for negative progress, got %q", got)
	}
	if got := renderProgressBar(2, 4); got != "====" {
		t.Fatalf("expected full bar for clamped progress, got %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	if got := formatClock(95); got != "1:35" {
		t.Fatalf("expected 1:35, got %q", got)
	}
	if got := formatClock(-3); got != "0:00" {
		t.Fatalf("expected negatives clamped to 0:00, got %q", got)
	}
}
