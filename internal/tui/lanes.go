package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/timing"
)

// laneView carries the shared geometry for one rendered frame of the note
// board. The playhead column is fixed; notes scroll right to left as the
// playhead position advances through the chart.
type laneView struct {
	playheadPos    float64
	colsPerMeasure int
	width          int
	playheadCol    int
	activeBeat     uint64
	hasActive      bool
}

// laneCell is one visible note in a drum lane.
type laneCell struct {
	col      int
	consumed bool
	active   bool
}

func (v laneView) column(timePosition float64) int {
	return v.playheadCol + int(math.Round((timePosition-v.playheadPos)*float64(v.colsPerMeasure)))
}

// cells projects the scheduled beats of one drum onto board columns.
func (v laneView) cells(beats []timing.Beat, drum chart.DrumType, consumed func(uint64) chart.DrumSet) []laneCell {
	var cells []laneCell
	for _, beat := range beats {
		if !beat.Drums.Has(drum) {
			continue
		}
		col := v.column(beat.TimePosition)
		if col < 0 || col >= v.width {
			continue
		}
		cells = append(cells, laneCell{
			col:      col,
			consumed: consumed(beat.ID).Has(drum),
			active:   v.hasActive && beat.ID == v.activeBeat,
		})
	}
	return cells
}

// lane draws a single drum lane. Later cells win when two beats land on the
// same column.
func (v laneView) lane(cells []laneCell) string {
	if v.width <= 0 {
		return ""
	}
	row := make([]rune, v.width)
	for i := range row {
		row[i] = ' '
	}
	if v.playheadCol >= 0 && v.playheadCol < v.width {
		row[v.playheadCol] = '|'
	}
	for _, cell := range cells {
		switch {
		case cell.consumed:
			row[cell.col] = 'o'
		case cell.active:
			row[cell.col] = '+'
		default:
			row[cell.col] = '*'
		}
	}
	return string(row)
}

// ruler draws measure numbers above the lanes at measure boundaries.
func (v laneView) ruler(maxMeasure int) string {
	if v.width <= 0 {
		return ""
	}
	row := make([]rune, v.width)
	for i := range row {
		row[i] = ' '
	}
	if v.playheadCol >= 0 && v.playheadCol < v.width {
		row[v.playheadCol] = '|'
	}
	for measure := 1; measure <= maxMeasure+1; measure++ {
		col := v.column(float64(measure - 1))
		for i, digit := range fmt.Sprintf("%d", measure) {
			at := col + i
			if at < 0 || at >= v.width {
				continue
			}
			row[at] = digit
		}
	}
	return string(row)
}

// scheduleDrums returns the drums present in the schedule, in display order.
func scheduleDrums(beats []timing.Beat) []chart.DrumType {
	var set chart.DrumSet
	for _, beat := range beats {
		set |= beat.Drums
	}
	return set.Drums()
}

// renderProgressBar draws a fixed-width bar filled to the given fraction.
func renderProgressBar(progress float64, width int) string {
	if width <= 0 {
		return ""
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(math.Round(progress * float64(width)))
	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteRune('=')
		} else {
			b.WriteRune('-')
		}
	}
	return b.String()
}

// formatClock renders seconds as m:ss, clamping negatives to zero.
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
