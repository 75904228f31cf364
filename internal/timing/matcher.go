package timing

import (
	"fmt"
	"math"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
)

// Judgment is the timing-accuracy tier of a classified hit.
type Judgment int

// Judgments from best to worst.
const (
	JudgmentPerfect Judgment = iota
	JudgmentGreat
	JudgmentGood
	JudgmentMiss
)

var judgmentNames = map[Judgment]string{
	JudgmentPerfect: "perfect",
	JudgmentGreat:   "great",
	JudgmentGood:    "good",
	JudgmentMiss:    "miss",
}

// String returns the lowercase judgment name.
func (j Judgment) String() string {
	if name, ok := judgmentNames[j]; ok {
		return name
	}
	return fmt.Sprintf("judgment(%d)", int(j))
}

// Windows holds the judging thresholds in milliseconds. They are gameplay
// tuning, not structural constants, and come from configuration.
type Windows struct {
	PerfectMs float64
	GreatMs   float64
	GoodMs    float64
	// MaxMs bounds the search for a matchable note; hits farther than this
	// from every note are misses without a matched note.
	MaxMs float64
}

// DefaultWindows are the stock judging thresholds.
var DefaultWindows = Windows{PerfectMs: 27, GreatMs: 58, GoodMs: 117, MaxMs: 200}

// Validate checks that the tiers are positive and properly nested.
func (w Windows) Validate() error {
	if w.PerfectMs <= 0 || w.GreatMs <= 0 || w.GoodMs <= 0 || w.MaxMs <= 0 {
		return fmt.Errorf("judging windows must be positive")
	}
	if w.PerfectMs > w.GreatMs || w.GreatMs > w.GoodMs || w.GoodMs > w.MaxMs {
		return fmt.Errorf("judging windows must be nested: perfect <= great <= good <= max")
	}
	return nil
}

// Classify maps a timing error to its tier. Boundaries are inclusive on the
// tighter tier, so an error exactly at the great threshold is a great.
func (w Windows) Classify(errorMs float64) Judgment {
	abs := math.Abs(errorMs)
	switch {
	case abs <= w.PerfectMs:
		return JudgmentPerfect
	case abs <= w.GreatMs:
		return JudgmentGreat
	case abs <= w.GoodMs:
		return JudgmentGood
	default:
		return JudgmentMiss
	}
}

// InputHit is one physical input event: which drum, stamped when the event
// arrived.
type InputHit struct {
	Drum      chart.DrumType
	Timestamp time.Time
}

// NoteMatchResult is the immutable outcome of classifying one hit.
type NoteMatchResult struct {
	Hit           InputHit
	Matched       bool
	MatchedBeatID uint64
	TimingErrorMs float64 // negative when early, positive when late
	Judgment      Judgment
	MeasureNumber int
}

// Matcher classifies live input against the shared note schedule. It uses
// the same tempo conversion as the clock, anchored to the same song start
// time, so both subsystems agree on beat zero.
type Matcher struct {
	bpm       float64
	sig       chart.TimeSignature
	schedule  *Schedule
	windows   Windows
	songStart time.Time
	listening bool
	consumed  map[uint64]chart.DrumSet
}

// NewMatcher validates the configuration and returns a matcher that is not
// yet listening. The schedule is shared with the coordinator; the matcher
// never builds its own copy.
func NewMatcher(bpm float64, sig chart.TimeSignature, schedule *Schedule, windows Windows) (*Matcher, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("bpm must be positive, got %v", bpm)
	}
	if sig.BeatsPerMeasure <= 0 {
		return nil, fmt.Errorf("beats per measure must be positive, got %d", sig.BeatsPerMeasure)
	}
	if schedule == nil || schedule.Len() == 0 {
		return nil, fmt.Errorf("note schedule is empty")
	}
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{
		bpm:      bpm,
		sig:      sig,
		schedule: schedule,
		windows:  windows,
		consumed: make(map[uint64]chart.DrumSet),
	}, nil
}

// StartListening begins accepting input, with songStart as the time origin
// for converting hit timestamps into measure units. Consumed-note tracking
// resets for the new run.
func (m *Matcher) StartListening(songStart time.Time) {
	m.songStart = songStart
	m.listening = true
	m.consumed = make(map[uint64]chart.DrumSet)
}

// Resume moves the time origin after a pause without forgetting which notes
// were already consumed. The new origin is the resumed run's beat zero, so
// callers pass the clock reference shifted back by the elapsed play time.
func (m *Matcher) Resume(songStart time.Time) {
	m.songStart = songStart
	m.listening = true
}

// StopListening stops accepting input. Safe to call repeatedly.
func (m *Matcher) StopListening() {
	m.listening = false
}

// Consumed reports which drums of the given beat have been matched so far.
func (m *Matcher) Consumed(beatID uint64) chart.DrumSet {
	return m.consumed[beatID]
}

// Listening reports whether input is being accepted.
func (m *Matcher) Listening() bool {
	return m.listening
}

// Match classifies a hit against the nearest unconsumed note of the same
// drum type. The second return is false while the matcher is not listening.
func (m *Matcher) Match(hit InputHit) (NoteMatchResult, bool) {
	if !m.listening {
		return NoteMatchResult{}, false
	}
	result := NoteMatchResult{Hit: hit, Judgment: JudgmentMiss}
	secondsPerMeasure := m.sig.SecondsPerMeasure(m.bpm)
	hitPosition := hit.Timestamp.Sub(m.songStart).Seconds() / secondsPerMeasure
	maxDelta := m.windows.MaxMs / 1000.0 / secondsPerMeasure

	best := -1
	bestDelta := 0.0
	consider := func(i int) bool {
		beat := m.schedule.At(i)
		delta := hitPosition - beat.TimePosition
		if math.Abs(delta) > maxDelta {
			return false
		}
		if !beat.Drums.Has(hit.Drum) || m.consumed[beat.ID].Has(hit.Drum) {
			return true
		}
		if best == -1 || math.Abs(delta) < math.Abs(bestDelta) {
			best = i
			bestDelta = delta
		}
		return true
	}
	if m.schedule.Len() > 0 {
		start := m.schedule.ClosestIndexAtOrBefore(hitPosition)
		for i := start; i >= 0; i-- {
			if !consider(i) {
				break
			}
		}
		for i := start + 1; i < m.schedule.Len(); i++ {
			if !consider(i) {
				break
			}
		}
	}

	if best < 0 {
		measure := int(math.Floor(hitPosition)) + 1
		if measure < 1 {
			measure = 1
		}
		result.MeasureNumber = measure
		return result, true
	}

	beat := m.schedule.At(best)
	result.Matched = true
	result.MatchedBeatID = beat.ID
	result.TimingErrorMs = bestDelta * secondsPerMeasure * 1000.0
	result.Judgment = m.windows.Classify(result.TimingErrorMs)
	result.MeasureNumber = beat.MeasureNumber()
	if result.Judgment != JudgmentMiss {
		m.consumed[beat.ID] = m.consumed[beat.ID].Add(hit.Drum)
	}
	return result, true
}
