package timing

import (
	"sort"
	"sync/atomic"

	"github.com/cwchanap/virgo/internal/chart"
)

// beatIDCounter hands out beat ids process-wide. Ids are never reused, even
// across rebuilds, so a stale id held by the UI can never collide with a
// fresh schedule entry.
var beatIDCounter atomic.Uint64

func nextBeatID() uint64 {
	return beatIDCounter.Add(1)
}

// Beat is a group of notes sounding together at one chart position.
type Beat struct {
	ID           uint64
	TimePosition float64
	Drums        chart.DrumSet
	Interval     chart.NoteInterval
}

// MeasureNumber returns the 1-based measure the beat falls in.
func (b Beat) MeasureNumber() int {
	return int(b.TimePosition) + 1
}

// Schedule is an ordered, time-indexed view over a chart's notes. It is
// immutable after build and safe to read from multiple components without
// locking; the coordinator and the matcher share one instance.
type Schedule struct {
	beats []Beat
}

// BuildSchedule groups notes sharing a (measure, offset) position into beats
// sorted by time position. Each group gets a fresh id.
func BuildSchedule(notes []chart.Note) *Schedule {
	type position struct {
		measure int
		offset  float64
	}
	groups := make(map[position]*Beat)
	order := make([]position, 0, len(notes))

	for _, note := range notes {
		pos := position{measure: note.MeasureNumber, offset: note.MeasureOffset}
		beat, ok := groups[pos]
		if !ok {
			beat = &Beat{TimePosition: note.TimePosition(), Interval: note.Interval}
			groups[pos] = beat
			order = append(order, pos)
		}
		beat.Drums = beat.Drums.Add(note.Drum)
		if note.Interval > beat.Interval {
			beat.Interval = note.Interval
		}
	}

	schedule := &Schedule{beats: make([]Beat, 0, len(order))}
	for _, pos := range order {
		schedule.beats = append(schedule.beats, *groups[pos])
	}
	sort.Slice(schedule.beats, func(i, j int) bool {
		return schedule.beats[i].TimePosition < schedule.beats[j].TimePosition
	})
	for i := range schedule.beats {
		schedule.beats[i].ID = nextBeatID()
	}
	return schedule
}

// Len returns the number of beats.
func (s *Schedule) Len() int {
	return len(s.beats)
}

// At returns the beat at index i.
func (s *Schedule) At(i int) Beat {
	return s.beats[i]
}

// Beats returns the ordered beats. The slice must be treated as read-only.
func (s *Schedule) Beats() []Beat {
	return s.beats
}

// ClosestIndexAtOrBefore returns the greatest index whose time position is
// at or before the query, or 0 when the query precedes the first beat.
// Callers must check Len before indexing an empty schedule.
func (s *Schedule) ClosestIndexAtOrBefore(timePosition float64) int {
	idx := sort.Search(len(s.beats), func(i int) bool {
		return s.beats[i].TimePosition > timePosition
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}
