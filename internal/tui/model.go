// Package tui provides the Bubble Tea drum play interface.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cwchanap/virgo/internal/audio"
	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/input"
	"github.com/cwchanap/virgo/internal/model"
	"github.com/cwchanap/virgo/internal/stats"
	"github.com/cwchanap/virgo/internal/store"
	"github.com/cwchanap/virgo/internal/timing"
)

const (
	tickInterval   = 16 * time.Millisecond
	flashDuration  = 600 * time.Millisecond
	colsPerMeasure = 16
	laneLabelWidth = 10
	fallbackWidth  = 72
)

type tickMsg time.Time

// HitMsg delivers a drum hit from an input source outside the key loop,
// such as the MIDI listener goroutine.
type HitMsg struct {
	Hit timing.InputHit
}

// SuspendMsg reports a lost audio device. The session pauses instead of
// drifting against a track that stopped sounding.
type SuspendMsg struct{}

type drumTally struct {
	perfect    int
	great      int
	good       int
	miss       int
	errorSumMs float64
	errorCount int64
}

// Session wires one play run together. Metronome and Transport are optional;
// Store may be nil to skip persistence.
type Session struct {
	SongTitle   string
	Artist      string
	Difficulty  string
	BPM         float64
	TimeSig     chart.TimeSignature
	Windows     timing.Windows
	Schedule    *timing.Schedule
	Coordinator *timing.Coordinator
	Matcher     *timing.Matcher
	Bindings    input.Bindings
	Metronome   *audio.Metronome
	Transport   *audio.Transport
	Store       *store.Store
}

// Model implements the Bubble Tea play UI.
type Model struct {
	sess Session

	width  int
	height int

	startedAt time.Time
	endedAt   time.Time
	judged    bool

	perfect  int
	great    int
	good     int
	miss     int
	combo    int
	maxCombo int
	tallies  map[chart.DrumType]*drumTally

	totalNotes    int
	measureTotals []int
	measureHits   []int

	lastJudgment timing.Judgment
	lastErrorMs  float64
	lastJudgedAt time.Time
	showJudgment bool

	sweepIdx      int
	lastMetroBeat int

	finished    bool
	resultSaved bool
	saveErr     error
	quitting    bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	laneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	perfectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	greatStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	missStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a play TUI model for a prepared session.
func NewModel(sess Session) *Model {
	m := &Model{
		sess:          sess,
		tallies:       map[chart.DrumType]*drumTally{},
		lastMetroBeat: -1,
	}
	m.indexSchedule()
	return m
}

func (m *Model) indexSchedule() {
	beats := m.sess.Schedule.Beats()
	maxMeasure := 0
	for _, beat := range beats {
		if n := beat.MeasureNumber(); n > maxMeasure {
			maxMeasure = n
		}
	}
	m.measureTotals = make([]int, maxMeasure)
	m.measureHits = make([]int, maxMeasure)
	for _, beat := range beats {
		n := beat.Drums.Count()
		m.totalNotes += n
		m.measureTotals[beat.MeasureNumber()-1] += n
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.startRun()
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) startRun() {
	if err := m.sess.Coordinator.Start(); err != nil {
		m.saveErr = err
		return
	}
	if start, ok := m.sess.Coordinator.SongStart(); ok {
		m.sess.Matcher.StartListening(start)
	}
	m.startedAt = time.Now()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		return m.handleTick(time.Time(msg))
	case HitMsg:
		m.handleHit(msg.Hit)
		return m, nil
	case SuspendMsg:
		if m.sess.Coordinator.State() == timing.StatePlaying {
			m.togglePause()
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeySpace:
		m.handleRune(' ')
		return m, nil
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			switch r {
			case 'q':
				return m.quit()
			case 'p':
				m.togglePause()
			case 'r':
				m.restart()
			case 'e':
				m.seekToEnd()
			default:
				m.handleRune(r)
			}
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	coord := m.sess.Coordinator
	coord.Tick()
	if coord.IsPlaying() {
		m.clickMetronome()
		m.sweepMissed()
	}
	if coord.State() == timing.StateCompleted && !m.finished {
		m.finishRun(now)
	}
	if m.showJudgment && now.Sub(m.lastJudgedAt) > flashDuration {
		m.showJudgment = false
	}
	return m, tick()
}

func (m *Model) handleRune(r rune) {
	hit, ok := m.sess.Bindings.Hit(r, time.Now())
	if !ok {
		return
	}
	m.handleHit(hit)
}

func (m *Model) handleHit(hit timing.InputHit) {
	if !m.sess.Coordinator.IsPlaying() {
		return
	}
	result, ok := m.sess.Matcher.Match(hit)
	if !ok {
		return
	}
	m.judged = true
	m.lastJudgment = result.Judgment
	m.lastErrorMs = result.TimingErrorMs
	m.lastJudgedAt = hit.Timestamp
	m.showJudgment = true
	if result.Matched && result.Judgment != timing.JudgmentMiss {
		m.countHit(hit.Drum, result)
		return
	}
	m.countMiss(hit.Drum)
}

func (m *Model) countHit(drum chart.DrumType, result timing.NoteMatchResult) {
	tally := m.tallyFor(drum)
	switch result.Judgment {
	case timing.JudgmentPerfect:
		m.perfect++
		tally.perfect++
	case timing.JudgmentGreat:
		m.great++
		tally.great++
	case timing.JudgmentGood:
		m.good++
		tally.good++
	}
	tally.errorSumMs += math.Abs(result.TimingErrorMs)
	tally.errorCount++
	m.combo++
	if m.combo > m.maxCombo {
		m.maxCombo = m.combo
	}
	if idx := result.MeasureNumber - 1; idx >= 0 && idx < len(m.measureHits) {
		m.measureHits[idx]++
	}
}

func (m *Model) countMiss(drum chart.DrumType) {
	m.miss++
	m.combo = 0
	m.tallyFor(drum).miss++
}

func (m *Model) tallyFor(drum chart.DrumType) *drumTally {
	tally, ok := m.tallies[drum]
	if !ok {
		tally = &drumTally{}
		m.tallies[drum] = tally
	}
	return tally
}

func (m *Model) clickMetronome() {
	if m.sess.Metronome == nil {
		return
	}
	beats := m.sess.Coordinator.TotalBeats()
	if beats == m.lastMetroBeat {
		return
	}
	m.lastMetroBeat = beats
	m.sess.Metronome.Click(beats%m.sess.TimeSig.BeatsPerMeasure == 0)
}

// sweepMissed counts beats that scrolled past the matching window without
// being hit. Awarding misses as the playhead passes keeps the combo honest
// instead of resolving everything at the end.
func (m *Model) sweepMissed() {
	secondsPerMeasure := m.sess.TimeSig.SecondsPerMeasure(m.sess.BPM)
	if secondsPerMeasure <= 0 {
		return
	}
	playheadPos := m.sess.Coordinator.ElapsedSeconds() / secondsPerMeasure
	cutoff := playheadPos - m.sess.Windows.MaxMs/1000.0/secondsPerMeasure
	beats := m.sess.Schedule.Beats()
	for m.sweepIdx < len(beats) && beats[m.sweepIdx].TimePosition < cutoff {
		beat := beats[m.sweepIdx]
		consumed := m.sess.Matcher.Consumed(beat.ID)
		for _, drum := range beat.Drums.Drums() {
			if !consumed.Has(drum) {
				m.countMiss(drum)
			}
		}
		m.sweepIdx++
	}
}

func (m *Model) togglePause() {
	coord := m.sess.Coordinator
	switch coord.State() {
	case timing.StatePlaying:
		coord.Pause()
		m.sess.Matcher.StopListening()
	case timing.StatePaused:
		if err := coord.Start(); err != nil {
			return
		}
		if start, ok := coord.SongStart(); ok {
			m.sess.Matcher.Resume(start)
		}
	}
}

func (m *Model) restart() {
	coord := m.sess.Coordinator
	if err := coord.Restart(); err != nil {
		return
	}
	if coord.State() != timing.StatePlaying {
		if err := coord.Start(); err != nil {
			return
		}
	}
	if start, ok := coord.SongStart(); ok {
		m.sess.Matcher.StartListening(start)
	}
	m.resetRun()
}

func (m *Model) resetRun() {
	m.startedAt = time.Now()
	m.endedAt = time.Time{}
	m.judged = false
	m.perfect = 0
	m.great = 0
	m.good = 0
	m.miss = 0
	m.combo = 0
	m.maxCombo = 0
	m.tallies = map[chart.DrumType]*drumTally{}
	for i := range m.measureHits {
		m.measureHits[i] = 0
	}
	m.showJudgment = false
	m.sweepIdx = 0
	m.lastMetroBeat = -1
	m.finished = false
	m.resultSaved = false
	m.saveErr = nil
}

func (m *Model) seekToEnd() {
	m.sess.Coordinator.SeekToEnd()
}

// finishRun resolves every remaining unhit note as a miss, stops input and
// persists the result.
func (m *Model) finishRun(now time.Time) {
	beats := m.sess.Schedule.Beats()
	for ; m.sweepIdx < len(beats); m.sweepIdx++ {
		beat := beats[m.sweepIdx]
		consumed := m.sess.Matcher.Consumed(beat.ID)
		for _, drum := range beat.Drums.Drums() {
			if !consumed.Has(drum) {
				m.countMiss(drum)
			}
		}
	}
	m.sess.Matcher.StopListening()
	m.finished = true
	m.endedAt = now
	m.saveResult(now)
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.sess.Matcher.StopListening()
	m.sess.Coordinator.Stop()
	// An abandoned run is only worth keeping when something was judged.
	if !m.finished && m.judged {
		m.saveResult(time.Now())
	}
	return m, tea.Quit
}

func (m *Model) saveResult(endedAt time.Time) {
	if m.sess.Store == nil || m.resultSaved {
		return
	}
	result := model.PlayResult{
		StartedAt:  m.startedAt,
		EndedAt:    endedAt,
		SongTitle:  m.sess.SongTitle,
		Difficulty: m.sess.Difficulty,
		BPM:        m.sess.BPM,
		TotalNotes: m.totalNotes,
		Perfect:    m.perfect,
		Great:      m.great,
		Good:       m.good,
		Miss:       m.miss,
		MaxCombo:   m.maxCombo,
		DurationMs: endedAt.Sub(m.startedAt).Milliseconds(),
	}
	drums := make([]model.DrumStats, 0, len(m.tallies))
	for drum, tally := range m.tallies {
		drums = append(drums, model.DrumStats{
			Drum:       drum.String(),
			Perfect:    tally.perfect,
			Great:      tally.great,
			Good:       tally.good,
			Miss:       tally.miss,
			ErrorSumMs: tally.errorSumMs,
			ErrorCount: tally.errorCount,
		})
	}
	if _, err := m.sess.Store.InsertResult(context.Background(), result, drums); err != nil {
		m.saveErr = err
		return
	}
	m.resultSaved = true
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var content string
	if m.finished {
		content = m.viewResults()
	} else {
		content = m.viewPlay()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) viewPlay() string {
	coord := m.sess.Coordinator
	var lines []string
	lines = append(lines, m.renderHeader())
	lines = append(lines, m.renderProgress())
	lines = append(lines, "")
	lines = append(lines, m.renderLanes()...)
	lines = append(lines, "")
	lines = append(lines, m.renderJudgment())
	lines = append(lines, m.renderCounts())
	if coord.State() == timing.StatePaused {
		lines = append(lines, "")
		lines = append(lines, pausedStyle.Render("PAUSED"))
	}
	lines = append(lines, "")
	lines = append(lines, m.renderFooter())
	return strings.Join(lines, "\n")
}

func (m *Model) renderHeader() string {
	parts := []string{titleStyle.Render(m.sess.SongTitle)}
	if m.sess.Artist != "" {
		parts = append(parts, m.sess.Artist)
	}
	parts = append(parts, m.sess.Difficulty)
	parts = append(parts, fmt.Sprintf("BPM %.0f", m.sess.BPM))
	return strings.Join(parts, footerStyle.Render(" / "))
}

func (m *Model) renderProgress() string {
	coord := m.sess.Coordinator
	width := m.boardWidth()
	bar := renderProgressBar(coord.Progress(), width)
	elapsed := math.Min(coord.ElapsedSeconds(), coord.TrackDuration())
	beat := int(coord.CurrentBeatPosition()*float64(m.sess.TimeSig.BeatsPerMeasure)) + 1
	cursor := fmt.Sprintf(" %s / %s  m%d b%d",
		formatClock(elapsed), formatClock(coord.TrackDuration()),
		coord.CurrentMeasureIndex()+1, beat)
	return footerStyle.Render(bar + cursor)
}

func (m *Model) laneView() laneView {
	coord := m.sess.Coordinator
	width := m.boardWidth()
	secondsPerMeasure := m.sess.TimeSig.SecondsPerMeasure(m.sess.BPM)
	playheadPos := 0.0
	if secondsPerMeasure > 0 {
		playheadPos = coord.ElapsedSeconds() / secondsPerMeasure
	}
	active, ok := coord.ActiveBeatID()
	return laneView{
		playheadPos:    playheadPos,
		colsPerMeasure: colsPerMeasure,
		width:          width,
		playheadCol:    width / 4,
		activeBeat:     active,
		hasActive:      ok,
	}
}

func (m *Model) renderLanes() []string {
	view := m.laneView()
	beats := m.sess.Schedule.Beats()
	pad := strings.Repeat(" ", laneLabelWidth)
	lines := []string{footerStyle.Render(pad + " " + view.ruler(len(m.measureTotals)))}
	for _, drum := range scheduleDrums(beats) {
		cells := view.cells(beats, drum, m.sess.Matcher.Consumed)
		label := fmt.Sprintf("%*s", laneLabelWidth, drum.String())
		lines = append(lines, laneStyle.Render(label)+" "+view.lane(cells))
	}
	return lines
}

func (m *Model) renderJudgment() string {
	if !m.showJudgment {
		return ""
	}
	label := strings.ToUpper(m.lastJudgment.String())
	switch m.lastJudgment {
	case timing.JudgmentPerfect:
		return perfectStyle.Render(label) + footerStyle.Render(fmt.Sprintf(" %+.1fms", m.lastErrorMs))
	case timing.JudgmentGreat:
		return greatStyle.Render(label) + footerStyle.Render(fmt.Sprintf(" %+.1fms", m.lastErrorMs))
	case timing.JudgmentGood:
		return goodStyle.Render(label) + footerStyle.Render(fmt.Sprintf(" %+.1fms", m.lastErrorMs))
	default:
		return missStyle.Render(label)
	}
}

func (m *Model) renderCounts() string {
	segments := []string{
		perfectStyle.Render(fmt.Sprintf("Perfect %d", m.perfect)),
		greatStyle.Render(fmt.Sprintf("Great %d", m.great)),
		goodStyle.Render(fmt.Sprintf("Good %d", m.good)),
		missStyle.Render(fmt.Sprintf("Miss %d", m.miss)),
		fmt.Sprintf("Combo %d", m.combo),
		footerStyle.Render(fmt.Sprintf("Max %d", m.maxCombo)),
	}
	return strings.Join(segments, "  ")
}

func (m *Model) renderFooter() string {
	segments := []string{"p pause", "r restart", "e end", "q quit"}
	footer := footerStyle.Render(strings.Join(segments, " / "))
	if m.sess.Transport != nil {
		if err := m.sess.Transport.Err(); err != nil {
			footer += "\n" + footerStyle.Render("bgm unavailable, playing silent")
		}
	}
	return footer
}

func (m *Model) viewResults() string {
	hit := m.perfect + m.great + m.good
	durationMs := m.endedAt.Sub(m.startedAt).Milliseconds()
	npm, rate := stats.ResultMetrics(hit, m.miss, durationMs)

	var lines []string
	lines = append(lines, titleStyle.Render("Results"))
	lines = append(lines, footerStyle.Render(m.sess.SongTitle+" / "+m.sess.Difficulty))
	lines = append(lines, "")
	lines = append(lines, perfectStyle.Render(fmt.Sprintf("Perfect %d", m.perfect)))
	lines = append(lines, greatStyle.Render(fmt.Sprintf("Great   %d", m.great)))
	lines = append(lines, goodStyle.Render(fmt.Sprintf("Good    %d", m.good)))
	lines = append(lines, missStyle.Render(fmt.Sprintf("Miss    %d", m.miss)))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Max combo %d", m.maxCombo))
	lines = append(lines, fmt.Sprintf("Hit rate  %.1f%%", rate*100))
	lines = append(lines, fmt.Sprintf("NPM       %.1f", npm))
	if avg, ok := m.avgErrorMs(); ok {
		lines = append(lines, fmt.Sprintf("Avg error %.1fms", avg))
	}
	if spark := m.measureSparkline(); spark != "" {
		lines = append(lines, "")
		lines = append(lines, footerStyle.Render("Measures  ")+spark)
	}
	lines = append(lines, "")
	lines = append(lines, m.renderSaveStatus())
	lines = append(lines, footerStyle.Render("r replay / q quit"))
	return strings.Join(lines, "\n")
}

func (m *Model) avgErrorMs() (float64, bool) {
	var sum float64
	var count int64
	for _, tally := range m.tallies {
		sum += tally.errorSumMs
		count += tally.errorCount
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// measureSparkline renders the per-measure hit rate. Empty measures count
// as full since there was nothing to miss.
func (m *Model) measureSparkline() string {
	if len(m.measureTotals) == 0 {
		return ""
	}
	rates := make([]float64, len(m.measureTotals))
	for i, total := range m.measureTotals {
		if total == 0 {
			rates[i] = 1
			continue
		}
		rates[i] = float64(m.measureHits[i]) / float64(total)
	}
	return stats.Sparkline(rates)
}

func (m *Model) renderSaveStatus() string {
	switch {
	case m.saveErr != nil:
		return missStyle.Render(fmt.Sprintf("failed to save result: %v", m.saveErr))
	case m.resultSaved:
		return footerStyle.Render("result saved")
	default:
		return ""
	}
}

func (m *Model) boardWidth() int {
	width := m.width - laneLabelWidth - 2
	if m.width == 0 {
		width = fallbackWidth
	}
	if width < 16 {
		width = 16
	}
	return width
}
