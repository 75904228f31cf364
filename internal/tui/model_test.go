package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/input"
	"github.com/cwchanap/virgo/internal/model"
	"github.com/cwchanap/virgo/internal/store"
	"github.com/cwchanap/virgo/internal/timing"
)

// playClock is a manually advanced time source driving the coordinator.
type playClock struct {
	now time.Time
}

func newPlayClock() *playClock {
	return &playClock{now: time.Unix(1000, 0)}
}

func (c *playClock) Now() time.Time { return c.now }

func (c *playClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// snareQuarters puts a snare hit on every beat of measure 1. At 120 BPM in
// common time the notes land at 0, 0.5, 1.0 and 1.5 seconds.
func snareQuarters() []chart.Note {
	notes := make([]chart.Note, 0, 4)
	for i := 0; i < 4; i++ {
		notes = append(notes, chart.Note{
			MeasureNumber: 1,
			MeasureOffset: float64(i) * 0.25,
			Drum:          chart.Snare,
			Interval:      chart.Quarter,
		})
	}
	return notes
}

func newPlayModel(t *testing.T, st *store.Store) (*Model, *playClock) {
	t.Helper()
	clock := newPlayClock()
	schedule := timing.BuildSchedule(snareQuarters())
	coord, err := timing.NewCoordinator(timing.CoordinatorConfig{
		BPM:           120,
		TimeSig:       chart.DefaultTimeSignature,
		Schedule:      schedule,
		TrackDuration: 2,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	matcher, err := timing.NewMatcher(120, chart.DefaultTimeSignature, schedule, timing.DefaultWindows)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	m := NewModel(Session{
		SongTitle:   "Neon Cascade",
		Difficulty:  "extreme",
		BPM:         120,
		TimeSig:     chart.DefaultTimeSignature,
		Windows:     timing.DefaultWindows,
		Schedule:    schedule,
		Coordinator: coord,
		Matcher:     matcher,
		Bindings:    input.DefaultBindings(),
		Store:       st,
	})
	return m, clock
}

func startPlay(t *testing.T, m *Model) {
	t.Helper()
	m.Init()
	if !m.sess.Coordinator.IsPlaying() {
		t.Fatalf("expected playing state after init")
	}
	if !m.sess.Matcher.Listening() {
		t.Fatalf("expected matcher listening after init")
	}
}

func songStart(t *testing.T, m *Model) time.Time {
	t.Helper()
	start, ok := m.sess.Coordinator.SongStart()
	if !ok {
		t.Fatalf("expected a song start while the clock is running")
	}
	return start
}

func TestModelIndexesSchedule(t *testing.T) {
	m, _ := newPlayModel(t, nil)
	if m.totalNotes != 4 {
		t.Fatalf("expected 4 total notes, got %d", m.totalNotes)
	}
	if len(m.measureTotals) != 1 || m.measureTotals[0] != 4 {
		t.Fatalf("expected one measure with 4 notes, got %v", m.measureTotals)
	}
}

func TestModelCountsPerfectHit(t *testing.T) {
	m, _ := newPlayModel(t, nil)
	startPlay(t, m)
	start := songStart(t, m)

	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: start})
	if m.perfect != 1 {
		t.Fatalf("expected 1 perfect, got %d", m.perfect)
	}
	if m.combo != 1 || m.maxCombo != 1 {
		t.Fatalf("expected combo 1/1, got %d/%d", m.combo, m.maxCombo)
	}
	if !m.judged {
		t.Fatalf("expected the run to count as judged")
	}
	tally := m.tallies[chart.Snare]
	if tally == nil || tally.perfect != 1 {
		t.Fatalf("expected a snare tally with 1 perfect, got %+v", tally)
	}
	if m.measureHits[0] != 1 {
		t.Fatalf("expected 1 hit in measure 1, got %d", m.measureHits[0])
	}
}

func TestModelLateHitInsideMaxWindowCountsAsMiss(t *testing.T) {
	m, _ := newPlayModel(t, nil)
	startPlay(t, m)
	start := songStart(t, m)
	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: start})
	if m.combo != 1 {
		t.Fatalf("expected combo 1 before the bad hit, got %d", m.combo)
	}

	// 150ms late on the second note: matched, but outside the good window.
	late := start.Add(500*time.Millisecond + 150*time.Millisecond)
	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: late})
	if m.miss != 1 {
		t.Fatalf("expected 1 miss, got %d", m.miss)
	}
	if m.combo != 0 {
		t.Fatalf("expected combo reset, got %d", m.combo)
	}
	if tally := m.tallies[chart.Snare]; tally.miss != 1 {
		t.Fatalf("expected 1 snare miss in the tally, got %d", tally.miss)
	}
}

func TestModelIgnoresHitsWhilePaused(t *testing.T) {
	m, _ := newPlayModel(t, nil)
	startPlay(t, m)
	start := songStart(t, m)
	m.togglePause()
	if m.sess.Coordinator.State() != timing.StatePaused {
		t.Fatalf("expected paused state, got %v", m.sess.Coordinator.State())
	}
	if m.sess.Matcher.Listening() {
		t.Fatalf("expected matcher stopped while paused")
	}

	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: start})
	if m.perfect != 0 || m.miss != 0 {
		t.Fatalf("expected no judgements while paused, got %d/%d", m.perfect, m.miss)
	}

	m.togglePause()
	if !m.sess.Coordinator.IsPlaying() {
		t.Fatalf("expected playing state after resume")
	}
	if !m.sess.Matcher.Listening() {
		t.Fatalf("expected matcher listening after resume")
	}
}

func TestModelSweepCountsPassedNotes(t *testing.T) {
	m, clock := newPlayModel(t, nil)
	startPlay(t, m)

	// One second in, the notes at 0s and 0.5s are both past the max window.
	clock.Advance(time.Second)
	m.handleTick(time.Now())
	if m.miss != 2 {
		t.Fatalf("expected 2 swept misses, got %d", m.miss)
	}
	if m.sweepIdx != 2 {
		t.Fatalf("expected sweep index 2, got %d", m.sweepIdx)
	}
	if tally := m.tallies[chart.Snare]; tally == nil || tally.miss != 2 {
		t.Fatalf("expected 2 snare misses in the tally, got %+v", tally)
	}
}

func TestModelSweepSkipsConsumedNotes(t *testing.T) {
	m, clock := newPlayModel(t, nil)
	startPlay(t, m)
	start := songStart(t, m)
	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: start})

	clock.Advance(time.Second)
	m.handleTick(time.Now())
	if m.miss != 1 {
		t.Fatalf("expected only the unhit note swept, got %d misses", m.miss)
	}
}

func TestModelFinishResolvesRemainderAndPersists(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "virgo.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	m, clock := newPlayModel(t, st)
	startPlay(t, m)
	start := songStart(t, m)
	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: start})

	clock.Advance(3 * time.Second)
	m.handleTick(time.Now())
	if !m.finished {
		t.Fatalf("expected the run to finish past the track duration")
	}
	if m.perfect != 1 || m.miss != 3 {
		t.Fatalf("expected 1 perfect and 3 misses, got %d/%d", m.perfect, m.miss)
	}
	if m.saveErr != nil {
		t.Fatalf("expected save to succeed, got %v", m.saveErr)
	}
	if !m.resultSaved {
		t.Fatalf("expected the result to be persisted")
	}

	results, err := st.ListResults(context.Background(), model.StatsConfig{})
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 stored result, got %d", len(results))
	}
	if results[0].SongTitle != "Neon Cascade" {
		t.Fatalf("expected stored title Neon Cascade, got %q", results[0].SongTitle)
	}
	if results[0].Miss != 3 {
		t.Fatalf("expected 3 stored misses, got %d", results[0].Miss)
	}
}

func TestModelQuitPersistsOnlyJudgedRuns(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "virgo.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	m, _ := newPlayModel(t, st)
	startPlay(t, m)
	m.quit()
	if m.resultSaved {
		t.Fatalf("expected an untouched run to be discarded on quit")
	}

	m2, _ := newPlayModel(t, st)
	startPlay(t, m2)
	m2.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: songStart(t, m2)})
	m2.quit()
	if !m2.resultSaved {
		t.Fatalf("expected a judged run to be persisted on quit")
	}
}

func TestModelRestartResetsRun(t *testing.T) {
	m, clock := newPlayModel(t, nil)
	startPlay(t, m)
	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: songStart(t, m)})
	clock.Advance(time.Second)
	m.handleTick(time.Now())

	m.restart()
	if m.perfect != 0 || m.miss != 0 || m.combo != 0 || m.maxCombo != 0 {
		t.Fatalf("expected counters reset, got %d/%d/%d/%d", m.perfect, m.miss, m.combo, m.maxCombo)
	}
	if m.sweepIdx != 0 {
		t.Fatalf("expected sweep index reset, got %d", m.sweepIdx)
	}
	if m.judged {
		t.Fatalf("expected judged flag cleared")
	}
	if len(m.tallies) != 0 {
		t.Fatalf("expected tallies cleared, got %d", len(m.tallies))
	}
	if m.measureHits[0] != 0 {
		t.Fatalf("expected measure hits cleared, got %d", m.measureHits[0])
	}
	if !m.sess.Coordinator.IsPlaying() {
		t.Fatalf("expected playback running after restart")
	}
	if !m.sess.Matcher.Listening() {
		t.Fatalf("expected matcher listening after restart")
	}
}

func TestModelSeekToEndFinishes(t *testing.T) {
	m, _ := newPlayModel(t, nil)
	startPlay(t, m)
	m.seekToEnd()
	m.handleTick(time.Now())
	if !m.finished {
		t.Fatalf("expected seek to end to finish the run")
	}
	if m.miss != 4 {
		t.Fatalf("expected all notes resolved as misses, got %d", m.miss)
	}
}

func TestModelViewPlayShowsHeaderAndLanes(t *testing.T) {
	m, _ := newPlayModel(t, nil)
	startPlay(t, m)
	view := m.View()
	if !strings.Contains(view, "Neon Cascade") {
		t.Fatalf("expected the song title in the play view")
	}
	if !strings.Contains(view, "snare") {
		t.Fatalf("expected a snare lane in the play view")
	}
	if !strings.Contains(view, "p pause") {
		t.Fatalf("expected the key hints in the play view")
	}
}

func TestModelViewResultsShowsSummary(t *testing.T) {
	m, clock := newPlayModel(t, nil)
	startPlay(t, m)
	m.handleHit(timing.InputHit{Drum: chart.Snare, Timestamp: songStart(t, m)})
	clock.Advance(3 * time.Second)
	m.handleTick(time.Now())

	view := m.View()
	if !strings.Contains(view, "Results") {
		t.Fatalf("expected the results header, got %q", view)
	}
	if !strings.Contains(view, "Max combo 1") {
		t.Fatalf("expected the max combo line, got %q", view)
	}
	if !strings.Contains(view, "r replay") {
		t.Fatalf("expected the replay hint, got %q", view)
	}
}
