// Package chart defines the drum chart data model and DTX parsing.
package chart

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DrumType identifies a playable drum voice.
type DrumType int

// Drum voices in DTX channel order.
const (
	HiHatClose DrumType = iota
	Snare
	BassDrum
	HighTom
	LowTom
	Crash
	FloorTom
	HiHatOpen
	Ride
)

// AllDrums lists every drum voice in display order.
var AllDrums = []DrumType{
	HiHatClose, HiHatOpen, Snare, BassDrum, HighTom, LowTom, FloorTom, Crash, Ride,
}

var drumNames = map[DrumType]string{
	HiHatClose: "hihat",
	Snare:      "snare",
	BassDrum:   "bass",
	HighTom:    "high-tom",
	LowTom:     "low-tom",
	Crash:      "crash",
	FloorTom:   "floor-tom",
	HiHatOpen:  "open-hihat",
	Ride:       "ride",
}

// String returns the stable short name used in config, storage and display.
func (d DrumType) String() string {
	if name, ok := drumNames[d]; ok {
		return name
	}
	return fmt.Sprintf("drum(%d)", int(d))
}

// ParseDrumType resolves a short drum name back to its DrumType.
func ParseDrumType(name string) (DrumType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for drum, drumName := range drumNames {
		if drumName == name {
			return drum, nil
		}
	}
	return 0, fmt.Errorf("unknown drum %q", name)
}

// DrumSet is a bitmask of drum voices sounding together on one beat.
type DrumSet uint16

// Add returns the set with the given drum included.
func (s DrumSet) Add(d DrumType) DrumSet {
	return s | 1<<uint(d)
}

// Has reports whether the drum is in the set.
func (s DrumSet) Has(d DrumType) bool {
	return s&(1<<uint(d)) != 0
}

// Drums expands the set into drum voices in display order.
func (s DrumSet) Drums() []DrumType {
	var out []DrumType
	for _, d := range AllDrums {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of drums in the set.
func (s DrumSet) Count() int {
	n := 0
	for _, d := range AllDrums {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// NoteInterval is the rhythmic subdivision a note was authored on.
type NoteInterval int

// Subdivisions from whole notes down to sixty-fourths.
const (
	Whole NoteInterval = iota
	Half
	Quarter
	Eighth
	Sixteenth
	ThirtySecond
	SixtyFourth
)

var intervalNames = map[NoteInterval]string{
	Whole:        "1/1",
	Half:         "1/2",
	Quarter:      "1/4",
	Eighth:       "1/8",
	Sixteenth:    "1/16",
	ThirtySecond: "1/32",
	SixtyFourth:  "1/64",
}

// String returns the subdivision as a fraction of a measure.
func (i NoteInterval) String() string {
	if name, ok := intervalNames[i]; ok {
		return name
	}
	return fmt.Sprintf("interval(%d)", int(i))
}

// IntervalForDivision maps a per-measure chip count to the nearest subdivision.
func IntervalForDivision(n int) NoteInterval {
	switch {
	case n <= 1:
		return Whole
	case n <= 2:
		return Half
	case n <= 4:
		return Quarter
	case n <= 8:
		return Eighth
	case n <= 16:
		return Sixteenth
	case n <= 32:
		return ThirtySecond
	default:
		return SixtyFourth
	}
}

// TimeSignature describes the meter of a chart.
type TimeSignature struct {
	BeatsPerMeasure int
	NoteValue       int
}

// DefaultTimeSignature is common time, the DTX default.
var DefaultTimeSignature = TimeSignature{BeatsPerMeasure: 4, NoteValue: 4}

// SecondsPerBeat converts tempo to the length of one beat.
func (ts TimeSignature) SecondsPerBeat(bpm float64) float64 {
	return 60.0 / bpm
}

// SecondsPerMeasure converts tempo to the length of one full measure.
func (ts TimeSignature) SecondsPerMeasure(bpm float64) float64 {
	return ts.SecondsPerBeat(bpm) * float64(ts.BeatsPerMeasure)
}

// Note is a single drum hit placed on the chart grid.
type Note struct {
	MeasureNumber int     // 1-based
	MeasureOffset float64 // fraction of the measure in [0, 1)
	Drum          DrumType
	Interval      NoteInterval
}

// TimePosition returns the note's position in measure units from song start.
func (n Note) TimePosition() float64 {
	return float64(n.MeasureNumber-1) + n.MeasureOffset
}

// Metadata holds the header fields of a DTX chart file.
type Metadata struct {
	Title  string
	Artist string
	BPM    float64
	Level  int
}

// Chart is a fully parsed playable chart.
type Chart struct {
	Title      string
	Artist     string
	BPM        float64
	Level      int
	Difficulty string
	TimeSig    TimeSignature
	Notes      []Note
	BGMFile    string  // relative to the chart file's directory
	BGMOffset  float64 // seconds between song start and the music's first sample
}

// MaxMeasure returns the highest measure number carrying a note, 0 when empty.
func (c *Chart) MaxMeasure() int {
	max := 0
	for _, n := range c.Notes {
		if n.MeasureNumber > max {
			max = n.MeasureNumber
		}
	}
	return max
}

// ChartRef points at one difficulty's chart file within a song.
type ChartRef struct {
	Difficulty string
	Label      string
	Level      int
	File       string
	Size       int64
}

// Song groups the charts of one track as listed by a SET.def.
type Song struct {
	ID       string
	Title    string
	Artist   string
	BPM      float64
	Duration string // authored length as "m:ss", may be empty
	Dir      string
	Charts   []ChartRef
}

// ChartForDifficulty returns the chart entry for a difficulty name. An empty
// difficulty selects the first (easiest) chart.
func (s *Song) ChartForDifficulty(difficulty string) (ChartRef, bool) {
	if len(s.Charts) == 0 {
		return ChartRef{}, false
	}
	if difficulty == "" {
		return s.Charts[0], true
	}
	for _, ref := range s.Charts {
		if strings.EqualFold(ref.Difficulty, difficulty) {
			return ref, true
		}
	}
	return ChartRef{}, false
}

// ChartPath resolves a chart entry to its file path inside the song folder.
func (s *Song) ChartPath(ref ChartRef) string {
	return filepath.Join(s.Dir, ref.File)
}

var difficultyLabels = map[string]string{
	"BASIC":    "easy",
	"ADVANCED": "medium",
	"EXTREME":  "hard",
	"MASTER":   "expert",
	"REAL":     "expert",
}

// DifficultyForLabel maps a SET.def difficulty label to its standard name.
// Unknown labels pass through lowercased.
func DifficultyForLabel(label string) string {
	upper := strings.ToUpper(strings.TrimSpace(label))
	if name, ok := difficultyLabels[upper]; ok {
		return name
	}
	return strings.ToLower(strings.TrimSpace(label))
}

// Difficulties lists the standard difficulty names in ascending order.
var Difficulties = []string{"easy", "medium", "hard", "expert"}

// IsStandardDifficulty reports whether name is one of the standard difficulties.
func IsStandardDifficulty(name string) bool {
	for _, d := range Difficulties {
		if d == name {
			return true
		}
	}
	return false
}
