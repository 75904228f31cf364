// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/model"
	"github.com/cwchanap/virgo/internal/stats"
	"github.com/cwchanap/virgo/internal/store"
)

const (
	tabOverview = iota
	tabDrumTable
	tabDrumCurves
)

const (
	plotHeight = 10
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	store *store.Store
	cfg   model.StatsConfig

	report     stats.Report
	errMsg     string
	drumErrMsg string

	tabs       []string
	activeTab  int
	viewports  []viewport.Model
	drumTable  table.Model
	drumLayout tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string

	drumSelection       []string
	drumSelectionCustom bool
	drumPerResult       map[int64]map[string]model.DrumAggregate

	drumInputMode  bool
	drumInput      textinput.Model
	drumInputError string
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
	colCount int
}

// NewModel constructs a stats UI model.
func NewModel(st *store.Store, cfg model.StatsConfig) *Model {
	m := &Model{
		store: st,
		cfg:   cfg,
		tabs:  []string{"Overview", "Drum Table", "Drum Curves"},
	}
	m.drumSelection = canonicalDrums(parseDrums(cfg.Drums))
	if len(m.drumSelection) > 0 {
		m.drumSelectionCustom = true
	}
	m.initInputs()
	m.initDrumInput()
	m.initDrumTable()
	m.initViewports()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.activeTab == tabDrumTable {
			m.drumTable.Focus()
		} else {
			m.drumTable.Blur()
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.drumInputMode {
			return m.updateDrumInput(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			m.updateLayout()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			m.updateLayout()
			return m, nil
		case "/":
			return m.startFilter()
		case "enter":
			if m.activeTab == tabDrumCurves {
				return m.startDrumInput()
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabDrumTable {
				m.drumTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabDrumTable {
				m.drumTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabDrumTable {
				var cmd tea.Cmd
				m.drumTable, cmd = m.drumTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.drumInputMode {
		return fitLines(m.renderDrumModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Song: "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
	}
	m.setInputsFromConfig()
}

func (m *Model) initDrumTable() {
	m.drumTable = buildDrumTable(nil, nil, 0, 1)
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) initDrumInput() {
	m.drumInput = newFilterInput("Drums: ")
	m.drumInput.Prompt = "Drums: "
	m.drumInput.Placeholder = "snare, bass"
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.filterInputs) == 0 {
		return
	}
	m.filterInputs[0].SetValue(strings.TrimSpace(m.cfg.Song))
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[1].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[2].SetValue("")
	}
	m.filterInputs[3].SetValue(strconv.Itoa(m.cfg.CurveWindow))
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.setDrumTableSize(m.width, vpHeight)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
	promptWidth := lipgloss.Width(m.drumInput.Prompt)
	m.drumInput.Width = maxInt(10, modalInnerWidth(m.width)-promptWidth)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabDrumTable {
		m.drumTable.Focus()
	} else {
		m.drumTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	song := m.cfg.Song
	if song == "" {
		song = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Settings: song=%s  since=%s  last=%s  window=%d", song, since, last, m.cfg.CurveWindow)
	if m.cfg.Difficulty != "" {
		summary += "  difficulty=" + m.cfg.Difficulty
	}
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Quit: q"
	if m.activeTab == tabDrumCurves {
		help = "Nav: left/right  Scroll: up/down/pgup/pgdn  Edit drums: enter  Window: -/=  Settings: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFilterHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: q")
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.renderFilterHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabDrumTable {
		switch {
		case len(m.report.Results) == 0:
			return fitLines("No plays found.", m.width, height)
		case len(m.report.DrumAggsAll) == 0:
			return fitLines("No drum stats found.", m.width, height)
		default:
			view := tableMutedStyle.Render(m.drumTable.View())
			return fitLines(view, m.width, height)
		}
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.drumErrMsg = ""
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load stats.")
		}
		return
	}
	m.errMsg = ""
	m.report = report
	if !m.drumSelectionCustom {
		m.drumSelection = stats.TopDrumsByFrequency(m.report.DrumAggsAll, 5)
	}
	m.loadDrumPerResult()
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	applyDrumTable(m, m.report.Results, m.report.DrumAggsAll, width, bodyHeight, true)
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load stats.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report.Results, m.cfg.CurveWindow, width))
	m.viewports[tabDrumCurves].SetContent(renderDrumCurves(m.report.Results, m.drumSelection, m.drumPerResult, m.cfg.CurveWindow, width, m.drumErrMsg))
}

func renderOverview(results []model.ResultAggregate, window, width int) string {
	if len(results) == 0 {
		return "No plays found."
	}
	summary := renderSummaryCards(results, width)
	curves := renderCurves(results, window, width)
	return strings.TrimRight(summary+"\n\n"+curves, "\n")
}

func renderSummaryCards(results []model.ResultAggregate, width int) string {
	if len(results) == 0 {
		return "No plays found."
	}
	var totalNPM, totalRate float64
	bestNPM, bestRate := 0.0, 0.0
	for _, r := range results {
		npm, rate := stats.ResultMetrics(r.Hit, r.Miss, r.DurationMs)
		totalNPM += npm
		totalRate += rate
		if npm > bestNPM {
			bestNPM = npm
		}
		if rate > bestRate {
			bestRate = rate
		}
	}
	count := float64(len(results))
	cards := []string{
		metricCard("Plays", fmt.Sprintf("%d", len(results))),
		metricCard("Avg NPM", fmt.Sprintf("%.1f", totalNPM/count)),
		metricCard("Best NPM", fmt.Sprintf("%.1f", bestNPM)),
		metricCard("Avg Hit Rate", fmt.Sprintf("%.1f%%", (totalRate/count)*100)),
		metricCard("Best Hit Rate", fmt.Sprintf("%.1f%%", bestRate*100)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderCurves(results []model.ResultAggregate, window, width int) string {
	var buf bytes.Buffer
	if err := stats.RenderCurvesWithSize(&buf, results, window, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildDrumTable(results []model.ResultAggregate, aggs []model.DrumAggregate, width, height int) table.Model {
	cols, rows := buildDrumTableData(results, aggs)
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(drumTableStyles())
	return t
}

func applyDrumTable(m *Model, results []model.ResultAggregate, aggs []model.DrumAggregate, width, height int, force bool) {
	cols, rows := buildDrumTableData(results, aggs)
	viewportHeight := maxInt(1, height-1)
	if !force &&
		m.drumLayout.width == width &&
		m.drumLayout.height == viewportHeight &&
		m.drumLayout.rowCount == len(rows) &&
		m.drumLayout.colCount == len(cols) {
		return
	}
	m.drumTable.SetColumns(cols)
	m.drumTable.SetRows(rows)
	m.drumLayout.rowCount = len(rows)
	m.drumLayout.colCount = len(cols)
	m.setDrumTableSize(width, height)
}

func (m *Model) setDrumTableSize(width, height int) {
	viewportHeight := maxInt(1, height-1)
	if m.drumLayout.width == width && m.drumLayout.height == viewportHeight {
		return
	}
	m.drumLayout.width = width
	m.drumLayout.height = viewportHeight
	m.drumTable.SetWidth(width)
	m.drumTable.SetHeight(viewportHeight)
	viewportHeight = m.adjustDrumTableHeight(height)
	if m.drumLayout.height != viewportHeight {
		m.drumLayout.height = viewportHeight
		m.drumTable.SetHeight(viewportHeight)
	}
}

func drumTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) adjustDrumTableHeight(bodyHeight int) int {
	target := maxInt(1, bodyHeight)
	height := m.drumTable.Height()
	viewHeight := lipgloss.Height(m.drumTable.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	m.drumTable.SetHeight(height)
	viewHeight = lipgloss.Height(m.drumTable.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	return height
}

func buildDrumTableData(results []model.ResultAggregate, aggs []model.DrumAggregate) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Drum", Width: 10},
		{Title: "Accuracy", Width: 9},
		{Title: "Hit Rate", Width: 9},
		{Title: "Avg Error (ms)", Width: 15},
		{Title: "Perfect", Width: 7},
		{Title: "Great", Width: 6},
		{Title: "Good", Width: 5},
		{Title: "Miss", Width: 5},
	}
	rows := make([]table.Row, 0, len(aggs))
	if len(results) == 0 || len(aggs) == 0 {
		return columns, rows
	}
	sorted := sortDrumAggsByAccuracy(aggs)
	for _, agg := range sorted {
		rows = append(rows, table.Row{
			agg.Drum,
			fmt.Sprintf("%.2f%%", stats.DrumAccuracy(agg)*100),
			fmt.Sprintf("%.2f%%", stats.DrumHitRate(agg)*100),
			fmt.Sprintf("%.1f", stats.DrumAvgErrorMs(agg)),
			fmt.Sprintf("%d", agg.Perfect),
			fmt.Sprintf("%d", agg.Great),
			fmt.Sprintf("%d", agg.Good),
			fmt.Sprintf("%d", agg.Miss),
		})
	}
	return columns, rows
}

func renderDrumCurves(results []model.ResultAggregate, drums []string, perResult map[int64]map[string]model.DrumAggregate, window, width int, errMsg string) string {
	if len(results) == 0 {
		return "No plays found."
	}
	if errMsg != "" {
		return fmt.Sprintf("Failed to load drum curves: %s", errMsg)
	}
	if len(drums) == 0 {
		return "No drums selected. Press Enter to set drums."
	}
	header := headerStyle.Render(fmt.Sprintf("Drums: %s", strings.Join(drums, ", ")))
	var buf bytes.Buffer
	if err := stats.RenderDrumCurvesWithSize(&buf, results, perResult, drums, window, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render drum curves: %v", err)
	}
	return strings.TrimRight(header+"\n"+buf.String(), "\n")
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) startDrumInput() (tea.Model, tea.Cmd) {
	m.drumInputMode = true
	m.drumInputError = ""
	m.drumInput.SetValue(strings.Join(m.drumSelection, ", "))
	return m, m.drumInput.Focus()
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) updateDrumInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.drumInputMode = false
		m.drumInputError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyDrumInput(); err != nil {
			m.drumInputError = err.Error()
			return m, nil
		}
		m.drumInputMode = false
		m.drumInputError = ""
		m.loadDrumPerResult()
		m.renderTabContents()
		return m, nil
	}
	var cmd tea.Cmd
	m.drumInput, cmd = m.drumInput.Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	song := strings.TrimSpace(m.filterInputs[0].Value())
	sinceInput := strings.TrimSpace(m.filterInputs[1].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	lastInput := strings.TrimSpace(m.filterInputs[2].Value())
	last := 0
	if lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}

	windowInput := strings.TrimSpace(m.filterInputs[3].Value())
	window := 0
	if windowInput != "" {
		parsed, err := strconv.Atoi(windowInput)
		if err != nil {
			return fmt.Errorf("invalid curve window (use integer)")
		}
		if parsed < 1 {
			return fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		window = parsed
	}

	m.cfg = model.StatsConfig{
		Song:        song,
		Difficulty:  m.cfg.Difficulty,
		Since:       since,
		Last:        last,
		CurveWindow: window,
	}
	return nil
}

func (m *Model) applyDrumInput() error {
	names := parseDrums(m.drumInput.Value())
	if len(names) == 0 {
		m.drumSelectionCustom = false
		m.drumSelection = stats.TopDrumsByFrequency(m.report.DrumAggsAll, 5)
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		drum, err := chart.ParseDrumType(name)
		if err != nil {
			return err
		}
		canonical := drum.String()
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	m.drumSelectionCustom = true
	m.drumSelection = out
	return nil
}

func (m *Model) renderDrumModal() string {
	title := cardValueStyle.Render("Select Drums")
	body := []string{
		title,
		m.drumInput.View(),
		headerStyle.Render("Comma-separated drum names. Empty picks the most played."),
		headerStyle.Render("Names: " + strings.Join(drumNameList(), ", ")),
		headerStyle.Render("Enter to apply / Esc to cancel"),
	}
	if m.drumInputError != "" {
		body = append(body, errorStyle.Render(m.drumInputError))
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) loadDrumPerResult() {
	m.drumErrMsg = ""
	m.drumPerResult = nil
	if len(m.report.Results) == 0 || len(m.drumSelection) == 0 {
		return
	}
	perResult, err := m.store.ListDrumStatsForResults(context.Background(), resultIDs(m.report.Results), m.drumSelection)
	if err != nil {
		m.drumErrMsg = err.Error()
		return
	}
	m.drumPerResult = perResult
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func resultIDs(results []model.ResultAggregate) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ResultID
	}
	return ids
}

func drumNameList() []string {
	names := make([]string, 0, len(chart.AllDrums))
	for _, drum := range chart.AllDrums {
		names = append(names, drum.String())
	}
	return names
}

// parseDrums splits a drum list on commas and whitespace, lowercasing each
// name. Validation is left to the caller.
func parseDrums(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, strings.ToLower(field))
	}
	return out
}

// canonicalDrums keeps only known drum names, in canonical spelling.
func canonicalDrums(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		drum, err := chart.ParseDrumType(name)
		if err != nil {
			continue
		}
		canonical := drum.String()
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	if n%5 == 0 {
		return n + 5
	}
	return ((n / 5) + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 80))
}

func modalInnerWidth(width int) int {
	w := modalWidth(width)
	w -= 6 // 2 border + 4 padding
	if w < 10 {
		return 10
	}
	return w
}

// sortDrumAggsByAccuracy orders weakest drums first so problem voices
// surface at the top of the table.
func sortDrumAggsByAccuracy(aggs []model.DrumAggregate) []model.DrumAggregate {
	out := append([]model.DrumAggregate(nil), aggs...)
	sort.Slice(out, func(i, j int) bool {
		accI := stats.DrumAccuracy(out[i])
		accJ := stats.DrumAccuracy(out[j])
		if accI == accJ {
			return out[i].Drum < out[j].Drum
		}
		return accI < accJ
	})
	return out
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
