// Package model defines shared data structures.
package model

import "time"

// PlayConfig defines settings for one play session.
type PlayConfig struct {
	SongPath   string
	Difficulty string
	PerfectMs  float64
	GreatMs    float64
	GoodMs     float64
	MaxMs      float64
	Tolerance  float64
	Metronome  bool
	NoBGM      bool
	MIDIPort   string
	Keys       map[string]string
}

// PracticeConfig defines settings for generated practice charts.
type PracticeConfig struct {
	Measures   int
	BPM        float64
	Density    float64
	Drums      string
	FocusWeak  bool
	WeakTop    int
	WeakFactor float64
	WeakWindow int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Song        string
	Difficulty  string
	Since       *time.Time
	Last        int
	CurveWindow int
	Drums       string
}

// PlayResult captures a completed play session.
type PlayResult struct {
	StartedAt  time.Time
	EndedAt    time.Time
	SongTitle  string
	Difficulty string
	BPM        float64
	TotalNotes int
	Perfect    int
	Great      int
	Good       int
	Miss       int
	MaxCombo   int
	DurationMs int64
}

// DrumStats stores per-drum judgement counts for a session.
type DrumStats struct {
	Drum       string
	Perfect    int
	Great      int
	Good       int
	Miss       int
	ErrorSumMs float64
	ErrorCount int64
}

// DrumAggregate aggregates drum stats across sessions.
type DrumAggregate struct {
	Drum       string
	Perfect    int
	Great      int
	Good       int
	Miss       int
	ErrorSumMs float64
	ErrorCount int64
}

// ResultAggregate summarizes a play session for reporting.
type ResultAggregate struct {
	ResultID   int64
	EndedAt    time.Time
	SongTitle  string
	Hit        int
	Miss       int
	DurationMs int64
}
