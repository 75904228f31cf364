// Package main provides the CLI entrypoint for virgo.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cwchanap/virgo/internal/audio"
	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/config"
	"github.com/cwchanap/virgo/internal/fetch"
	"github.com/cwchanap/virgo/internal/generator"
	"github.com/cwchanap/virgo/internal/input"
	"github.com/cwchanap/virgo/internal/library"
	"github.com/cwchanap/virgo/internal/model"
	"github.com/cwchanap/virgo/internal/server"
	"github.com/cwchanap/virgo/internal/stats"
	"github.com/cwchanap/virgo/internal/statsui"
	"github.com/cwchanap/virgo/internal/store"
	"github.com/cwchanap/virgo/internal/timing"
	"github.com/cwchanap/virgo/internal/tui"
)

const (
	defaultTolerance   = 0.05
	defaultMeasures    = 8
	defaultBPM         = 120.0
	defaultDensity     = 0.5
	defaultWeakTop     = 3
	defaultWeakFactor  = 2.0
	defaultWeakWindow  = 20
	defaultCurveWindow = 20
	defaultServerURL   = "http://localhost:8000"
	defaultServePort   = 8000
)

const defaultPracticeDrums = "hihat,snare,bass"

var (
	playSongsDir   string
	playDifficulty string
	playPerfectMs  float64
	playGreatMs    float64
	playGoodMs     float64
	playMaxMs      float64
	playTolerance  float64
	playMetronome  bool
	playNoBGM      bool
	playMIDIPort   string

	practiceMeasures   int
	practiceBPM        float64
	practiceDensity    float64
	practiceDrums      string
	practiceMetronome  bool
	practiceMIDIPort   string
	practiceFocusWeak  bool
	practiceWeakTop    int
	practiceWeakFactor float64
	practiceWeakWindow int

	songsDir string

	fetchServerURL string
	fetchSongsDir  string

	servePort     int
	serveSongsDir string
	serveDebug    bool

	statsSong        string
	statsDifficulty  string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsDrums       string
	statsPlain       bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "virgo [song]",
		Short:         "TUI drum trainer for DTX charts",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playSongsDir, "songs-dir", config.DefaultSongsDir(), "songs directory")
	rootCmd.Flags().StringVar(&playDifficulty, "difficulty", "", "chart difficulty (easy, medium, hard, expert)")
	rootCmd.Flags().Float64Var(&playPerfectMs, "perfect-ms", timing.DefaultWindows.PerfectMs, "perfect window in milliseconds")
	rootCmd.Flags().Float64Var(&playGreatMs, "great-ms", timing.DefaultWindows.GreatMs, "great window in milliseconds")
	rootCmd.Flags().Float64Var(&playGoodMs, "good-ms", timing.DefaultWindows.GoodMs, "good window in milliseconds")
	rootCmd.Flags().Float64Var(&playMaxMs, "max-ms", timing.DefaultWindows.MaxMs, "widest window a hit can match in")
	rootCmd.Flags().Float64Var(&playTolerance, "tolerance", defaultTolerance, "active-beat highlight window in measures")
	rootCmd.Flags().BoolVar(&playMetronome, "metronome", false, "click on every beat")
	rootCmd.Flags().BoolVar(&playNoBGM, "no-bgm", false, "play without background music")
	rootCmd.Flags().StringVar(&playMIDIPort, "midi-port", "", "substring of the MIDI input port name")

	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newSongsCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		logErrf("No song given. List songs with: virgo songs\n")
		return fmt.Errorf("song id or chart path required")
	}

	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "songs-dir", &playSongsDir, fileCfg.Play.SongsDir)
	applyStringConfig(cmd, "difficulty", &playDifficulty, fileCfg.Play.Difficulty)
	applyFloatConfig(cmd, "perfect-ms", &playPerfectMs, fileCfg.Play.PerfectMs)
	applyFloatConfig(cmd, "great-ms", &playGreatMs, fileCfg.Play.GreatMs)
	applyFloatConfig(cmd, "good-ms", &playGoodMs, fileCfg.Play.GoodMs)
	applyFloatConfig(cmd, "max-ms", &playMaxMs, fileCfg.Play.MaxMs)
	applyFloatConfig(cmd, "tolerance", &playTolerance, fileCfg.Play.Tolerance)
	applyBoolConfig(cmd, "metronome", &playMetronome, fileCfg.Play.Metronome)
	applyBoolConfig(cmd, "no-bgm", &playNoBGM, fileCfg.Play.NoBGM)
	applyStringConfig(cmd, "midi-port", &playMIDIPort, fileCfg.Play.MIDIPort)

	cfg := model.PlayConfig{
		SongPath:   args[0],
		Difficulty: strings.ToLower(playDifficulty),
		PerfectMs:  playPerfectMs,
		GreatMs:    playGreatMs,
		GoodMs:     playGoodMs,
		MaxMs:      playMaxMs,
		Tolerance:  playTolerance,
		Metronome:  playMetronome,
		NoBGM:      playNoBGM,
		MIDIPort:   playMIDIPort,
		Keys:       fileCfg.Keys,
	}
	if err := validatePlayConfig(cfg); err != nil {
		return err
	}
	if cfg.Difficulty != "" && !chart.IsStandardDifficulty(cfg.Difficulty) {
		logErrf("difficulty %q is not a standard label (%s)\n", cfg.Difficulty, strings.Join(chart.Difficulties, ", "))
	}

	src, err := resolvePlayTarget(playSongsDir, cfg.SongPath, cfg.Difficulty)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	return runSession(src, cfg, st)
}

// sessionSource is a fully resolved chart ready to play.
type sessionSource struct {
	Title      string
	Artist     string
	Difficulty string
	Duration   string // authored "m:ss", may be empty
	Chart      *chart.Chart
	BGMPath    string
}

// resolvePlayTarget loads the chart behind a song id, a loose chart name or a
// direct .dtx path.
func resolvePlayTarget(songsDir, target, difficulty string) (sessionSource, error) {
	if strings.EqualFold(filepath.Ext(target), ".dtx") {
		if _, err := os.Stat(target); err == nil {
			return looseSource(target, difficulty)
		}
	}

	lib, err := library.Scan(songsDir)
	if err != nil {
		return sessionSource{}, err
	}
	if song, ok := lib.FindSong(target); ok {
		return songSource(song, difficulty)
	}
	for _, loose := range lib.Loose {
		name := strings.TrimSuffix(loose.Filename, filepath.Ext(loose.Filename))
		if loose.Filename == target || name == target {
			return looseSource(loose.Path, difficulty)
		}
	}
	logErrf("Song %q not found in %s. List songs with: virgo songs\n", target, songsDir)
	return sessionSource{}, fmt.Errorf("song not found")
}

func looseSource(path, difficulty string) (sessionSource, error) {
	parsed, err := chart.ParseChart(path)
	if err != nil {
		return sessionSource{}, err
	}
	title := parsed.Title
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if difficulty == "" {
		difficulty = parsed.Difficulty
	}
	if difficulty == "" {
		difficulty = "custom"
	}
	return sessionSource{
		Title:      title,
		Artist:     parsed.Artist,
		Difficulty: difficulty,
		Chart:      parsed,
		BGMPath:    bgmPath(path, parsed),
	}, nil
}

func songSource(song chart.Song, difficulty string) (sessionSource, error) {
	ref, ok := song.ChartForDifficulty(difficulty)
	if !ok {
		if len(song.Charts) == 0 {
			return sessionSource{}, fmt.Errorf("song %q has no charts", song.ID)
		}
		return sessionSource{}, fmt.Errorf("song %q has no %s chart (available: %s)",
			song.ID, difficulty, strings.Join(songDifficulties(song), ", "))
	}
	chartPath := song.ChartPath(ref)
	parsed, err := chart.ParseChart(chartPath)
	if err != nil {
		return sessionSource{}, err
	}
	title := song.Title
	if title == "" {
		title = parsed.Title
	}
	artist := song.Artist
	if artist == "" {
		artist = parsed.Artist
	}
	return sessionSource{
		Title:      title,
		Artist:     artist,
		Difficulty: ref.Difficulty,
		Duration:   song.Duration,
		Chart:      parsed,
		BGMPath:    bgmPath(chartPath, parsed),
	}, nil
}

func songDifficulties(song chart.Song) []string {
	labels := make([]string, 0, len(song.Charts))
	for _, ref := range song.Charts {
		labels = append(labels, ref.Difficulty)
	}
	return labels
}

// bgmPath resolves a chart's BGM reference against the chart's own directory.
func bgmPath(chartPath string, c *chart.Chart) string {
	if c.BGMFile == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(chartPath), c.BGMFile)
}

// runSession builds the timing core and audio stack for a resolved chart and
// hands them to the play TUI. Audio failures degrade to a silent session.
func runSession(src sessionSource, cfg model.PlayConfig, st *store.Store) error {
	parsed := src.Chart
	if parsed.BPM <= 0 {
		return fmt.Errorf("chart %q has no BPM", src.Title)
	}
	schedule := timing.BuildSchedule(parsed.Notes)
	if schedule.Len() == 0 {
		return fmt.Errorf("chart %q has no notes", src.Title)
	}
	windows := timing.Windows{
		PerfectMs: cfg.PerfectMs,
		GreatMs:   cfg.GreatMs,
		GoodMs:    cfg.GoodMs,
		MaxMs:     cfg.MaxMs,
	}

	bindings := input.DefaultBindings()
	if len(cfg.Keys) > 0 {
		custom, err := input.ParseBindings(cfg.Keys)
		if err != nil {
			return fmt.Errorf("invalid [keys] config: %w", err)
		}
		bindings = custom
	}

	var transport *audio.Transport
	var metronome *audio.Metronome
	wantBGM := !cfg.NoBGM && src.BGMPath != ""
	if cfg.Metronome || wantBGM {
		player, err := audio.NewBGMPlayer()
		if err != nil {
			logErrf("audio unavailable, playing silent: %v\n", err)
		} else {
			if cfg.Metronome {
				metronome = audio.NewMetronome(player.Mix())
			}
			if wantBGM {
				transport = audio.NewTransport(player)
				transport.Load(src.BGMPath)
			}
		}
	}

	coordCfg := timing.CoordinatorConfig{
		BPM:             parsed.BPM,
		TimeSig:         parsed.TimeSig,
		Schedule:        schedule,
		TrackDuration:   chart.TrackDurationSeconds(src.Duration, parsed),
		BGMLeadIn:       parsed.BGMOffset,
		ActiveTolerance: cfg.Tolerance,
	}
	if transport != nil {
		// A nil *Transport stored in the interface would not compare
		// equal to nil.
		coordCfg.Transport = transport
	}
	coord, err := timing.NewCoordinator(coordCfg)
	if err != nil {
		return err
	}
	matcher, err := timing.NewMatcher(parsed.BPM, parsed.TimeSig, schedule, windows)
	if err != nil {
		return err
	}

	sess := tui.Session{
		SongTitle:   src.Title,
		Artist:      src.Artist,
		Difficulty:  src.Difficulty,
		BPM:         parsed.BPM,
		TimeSig:     parsed.TimeSig,
		Windows:     windows,
		Schedule:    schedule,
		Coordinator: coord,
		Matcher:     matcher,
		Bindings:    bindings,
		Metronome:   metronome,
		Transport:   transport,
		Store:       st,
	}
	program := tea.NewProgram(tui.NewModel(sess), tea.WithAltScreen())
	if transport != nil {
		transport.SetInterruptionHandler(func(suspended bool) {
			if suspended {
				program.Send(tui.SuspendMsg{})
			}
		})
	}
	if cfg.MIDIPort != "" {
		listener, err := input.OpenMIDI(cfg.MIDIPort, slog.Default(), func(hit timing.InputHit) {
			program.Send(tui.HitMsg{Hit: hit})
		})
		if err != nil {
			logErrf("midi unavailable, keyboard only: %v\n", err)
		} else {
			defer listener.Close()
		}
	}
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newPracticeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Generate and play a practice chart",
		Args:  cobra.NoArgs,
		RunE:  runPracticeCmd,
	}
	cmd.Flags().IntVar(&practiceMeasures, "measures", defaultMeasures, "measures to generate")
	cmd.Flags().Float64Var(&practiceBPM, "bpm", defaultBPM, "tempo in beats per minute")
	cmd.Flags().Float64Var(&practiceDensity, "density", defaultDensity, "probability of a note per sixteenth step (0-1)")
	cmd.Flags().StringVar(&practiceDrums, "drums", defaultPracticeDrums, "comma-separated drums to draw from")
	cmd.Flags().BoolVar(&practiceMetronome, "metronome", true, "click on every beat")
	cmd.Flags().StringVar(&practiceMIDIPort, "midi-port", "", "substring of the MIDI input port name")
	cmd.Flags().BoolVar(&practiceFocusWeak, "focus-weak", false, "bias generation toward weak drums")
	cmd.Flags().IntVar(&practiceWeakTop, "weak-top", defaultWeakTop, "number of weak drums to focus on")
	cmd.Flags().Float64Var(&practiceWeakFactor, "weak-factor", defaultWeakFactor, "weight factor for weak drums")
	cmd.Flags().IntVar(&practiceWeakWindow, "weak-window", defaultWeakWindow, "number of recent plays to compute weak drums")
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "measures", &practiceMeasures, fileCfg.Practice.Measures)
	applyFloatConfig(cmd, "bpm", &practiceBPM, fileCfg.Practice.BPM)
	applyFloatConfig(cmd, "density", &practiceDensity, fileCfg.Practice.Density)
	applyStringConfig(cmd, "drums", &practiceDrums, fileCfg.Practice.Drums)
	applyBoolConfig(cmd, "focus-weak", &practiceFocusWeak, fileCfg.Practice.FocusWeak)
	applyIntConfig(cmd, "weak-top", &practiceWeakTop, fileCfg.Practice.WeakTop)
	applyFloatConfig(cmd, "weak-factor", &practiceWeakFactor, fileCfg.Practice.WeakFactor)
	applyIntConfig(cmd, "weak-window", &practiceWeakWindow, fileCfg.Practice.WeakWindow)
	applyStringConfig(cmd, "midi-port", &practiceMIDIPort, fileCfg.Play.MIDIPort)

	cfg := model.PracticeConfig{
		Measures:   practiceMeasures,
		BPM:        practiceBPM,
		Density:    practiceDensity,
		Drums:      practiceDrums,
		FocusWeak:  practiceFocusWeak,
		WeakTop:    practiceWeakTop,
		WeakFactor: practiceWeakFactor,
		WeakWindow: practiceWeakWindow,
	}
	if err := validatePracticeConfig(cfg); err != nil {
		return err
	}
	drums, err := parseDrumTypes(cfg.Drums)
	if err != nil {
		return fmt.Errorf("invalid --drums value: %w", err)
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	weakSet := map[chart.DrumType]struct{}{}
	if cfg.FocusWeak {
		aggs, err := st.GetWeakDrums(context.Background(), cfg.WeakWindow, "")
		if err != nil {
			logErrf("failed to load weak drums: %v\n", err)
		} else {
			weakSet = stats.SelectWeakDrums(aggs, cfg.WeakTop)
			if len(weakSet) == 0 {
				logErrln("no play history for weak-drum focus yet; using the uniform generator")
			}
		}
	}

	gen := generator.New()
	var generated *chart.Chart
	if len(weakSet) > 0 {
		generated = gen.GenerateWeighted(cfg.Measures, cfg.BPM, cfg.Density, drums, weakSet, cfg.WeakFactor)
	} else {
		generated = gen.Generate(cfg.Measures, cfg.BPM, cfg.Density, drums)
	}

	src := sessionSource{
		Title:      generated.Title,
		Difficulty: generated.Difficulty,
		Chart:      generated,
	}
	playCfg := practicePlayConfig(fileCfg)
	playCfg.Metronome = practiceMetronome
	playCfg.MIDIPort = practiceMIDIPort
	if err := validatePlayConfig(playCfg); err != nil {
		return err
	}
	return runSession(src, playCfg, st)
}

// practicePlayConfig carries the play-section windows into a generated
// session. Flags on the practice command cover generation only.
func practicePlayConfig(fileCfg config.FileConfig) model.PlayConfig {
	cfg := model.PlayConfig{
		PerfectMs: timing.DefaultWindows.PerfectMs,
		GreatMs:   timing.DefaultWindows.GreatMs,
		GoodMs:    timing.DefaultWindows.GoodMs,
		MaxMs:     timing.DefaultWindows.MaxMs,
		Tolerance: defaultTolerance,
		Keys:      fileCfg.Keys,
	}
	if fileCfg.Play.PerfectMs != nil {
		cfg.PerfectMs = *fileCfg.Play.PerfectMs
	}
	if fileCfg.Play.GreatMs != nil {
		cfg.GreatMs = *fileCfg.Play.GreatMs
	}
	if fileCfg.Play.GoodMs != nil {
		cfg.GoodMs = *fileCfg.Play.GoodMs
	}
	if fileCfg.Play.MaxMs != nil {
		cfg.MaxMs = *fileCfg.Play.MaxMs
	}
	if fileCfg.Play.Tolerance != nil {
		cfg.Tolerance = *fileCfg.Play.Tolerance
	}
	return cfg
}

func newSongsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "songs",
		Short: "List downloaded songs",
		Args:  cobra.NoArgs,
		RunE:  runSongsCmd,
	}
	cmd.Flags().StringVar(&songsDir, "songs-dir", config.DefaultSongsDir(), "songs directory")
	return cmd
}

func runSongsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "songs-dir", &songsDir, fileCfg.Play.SongsDir)

	lib, err := library.Scan(songsDir)
	if err != nil {
		return err
	}
	if len(lib.Songs) == 0 && len(lib.Loose) == 0 {
		logErrf("No songs found. Download with: virgo fetch get <song-id>\n")
		return fmt.Errorf("no songs found")
	}
	out := cmd.OutOrStdout()
	if err := writeSongLines(out, lib.Songs); err != nil {
		return err
	}
	for _, loose := range lib.Loose {
		if _, err := fmt.Fprintf(out, "%s\t(loose chart)\n", loose.Filename); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func writeSongLines(out io.Writer, songs []chart.Song) error {
	for _, song := range songs {
		line := fmt.Sprintf("%s\t%s", song.ID, song.Title)
		if song.Artist != "" {
			line += " / " + song.Artist
		}
		line += fmt.Sprintf("\t[%s]", strings.Join(songDifficulties(song), " "))
		if song.Duration != "" {
			line += "\t" + song.Duration
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Browse and download songs from a chart server",
	}
	cmd.AddCommand(newFetchListCmd())
	cmd.AddCommand(newFetchGetCmd())
	return cmd
}

func newFetchListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List songs available on the server",
		Args:  cobra.NoArgs,
		RunE:  runFetchListCmd,
	}
	cmd.Flags().StringVar(&fetchServerURL, "server-url", defaultServerURL, "chart server base URL")
	return cmd
}

func runFetchListCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server-url", &fetchServerURL, fileCfg.Fetch.ServerURL)

	catalog, err := fetch.ListSongs(context.Background(), fetchServerURL)
	if err != nil {
		return err
	}
	if len(catalog.Songs) == 0 && len(catalog.Loose) == 0 {
		logErrln("Server has no songs.")
		return nil
	}
	out := cmd.OutOrStdout()
	if err := writeSongLines(out, catalog.Songs); err != nil {
		return err
	}
	for _, loose := range catalog.Loose {
		if _, err := fmt.Fprintf(out, "%s\t(loose chart)\n", loose.Filename); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newFetchGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <song-id|chart.dtx>",
		Short: "Download a song or loose chart",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetchGetCmd,
	}
	cmd.Flags().StringVar(&fetchServerURL, "server-url", defaultServerURL, "chart server base URL")
	cmd.Flags().StringVar(&fetchSongsDir, "songs-dir", config.DefaultSongsDir(), "songs directory")
	return cmd
}

func runFetchGetCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server-url", &fetchServerURL, fileCfg.Fetch.ServerURL)
	applyStringConfig(cmd, "songs-dir", &fetchSongsDir, fileCfg.Play.SongsDir)

	target := args[0]
	ctx := context.Background()
	if strings.EqualFold(filepath.Ext(target), ".dtx") {
		path, err := fetch.DownloadLoose(ctx, fetchServerURL, target, fetchSongsDir)
		if err != nil {
			return err
		}
		logErrf("Wrote %s\n", path)
		return nil
	}

	report, err := fetch.DownloadSong(ctx, fetchServerURL, target, fetchSongsDir)
	if err != nil {
		return err
	}
	for _, name := range report.Files {
		logErrf("Wrote %s\n", filepath.Join(report.Dir, name))
	}
	for _, name := range report.Skipped {
		logErrf("Skipped %s (not on server)\n", name)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the song library over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().IntVar(&servePort, "port", defaultServePort, "listen port")
	cmd.Flags().StringVar(&serveSongsDir, "songs-dir", config.DefaultSongsDir(), "songs directory")
	cmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "port", &servePort, fileCfg.Serve.Port)
	applyStringConfig(cmd, "songs-dir", &serveSongsDir, fileCfg.Serve.SongsDir)

	initLogger(serveDebug)
	srv := server.New(serveSongsDir, slog.Default())
	return srv.ListenAndServe(fmt.Sprintf(":%d", servePort))
}

// initLogger routes slog through a stderr text handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	slog.SetDefault(slog.New(h))
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show play stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSong, "song", "", "song title filter")
	cmd.Flags().StringVar(&statsDifficulty, "difficulty", "", "difficulty filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N plays")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().StringVar(&statsDrums, "drums", "", "drums for per-drum curves")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print to stdout instead of the TUI")
	return cmd
}

func runStatsCmd(_ *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}

	cfg := model.StatsConfig{
		Song:        statsSong,
		Difficulty:  strings.ToLower(statsDifficulty),
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
		Drums:       statsDrums,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsPlain {
		return renderPlainStats(st, cfg)
	}

	model := statsui.NewModel(st, cfg)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

// renderPlainStats prints the report straight to stdout for piping.
func renderPlainStats(st *store.Store, cfg model.StatsConfig) error {
	ctx := context.Background()
	report, err := stats.BuildReport(ctx, st, cfg)
	if err != nil {
		return err
	}
	out := os.Stdout
	if err := stats.RenderSummary(out, report.Results); err != nil {
		return err
	}
	if len(report.Results) == 0 {
		return nil
	}
	if err := stats.RenderCurves(out, report.Results, cfg.CurveWindow); err != nil {
		return err
	}
	if err := stats.RenderDrumTable(out, report.DrumAggsWindow); err != nil {
		return err
	}
	drums, err := statsDrumNames(cfg.Drums, report)
	if err != nil {
		return err
	}
	if len(drums) == 0 {
		return nil
	}
	perResult, err := st.ListDrumStatsForResults(ctx, resultIDs(report.Results), drums)
	if err != nil {
		return err
	}
	return stats.RenderDrumCurves(out, report.Results, perResult, drums, cfg.CurveWindow)
}

// statsDrumNames resolves the per-drum curve selection, defaulting to the
// most played drums.
func statsDrumNames(list string, report stats.Report) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return stats.TopDrumsByFrequency(report.DrumAggsAll, 5), nil
	}
	drums, err := parseDrumTypes(list)
	if err != nil {
		return nil, fmt.Errorf("invalid --drums value: %w", err)
	}
	names := make([]string, 0, len(drums))
	for _, drum := range drums {
		names = append(names, drum.String())
	}
	return names, nil
}

func resultIDs(results []model.ResultAggregate) []int64 {
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ResultID)
	}
	return ids
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func validatePlayConfig(cfg model.PlayConfig) error {
	windows := timing.Windows{
		PerfectMs: cfg.PerfectMs,
		GreatMs:   cfg.GreatMs,
		GoodMs:    cfg.GoodMs,
		MaxMs:     cfg.MaxMs,
	}
	if err := windows.Validate(); err != nil {
		return err
	}
	if cfg.Tolerance <= 0 {
		return fmt.Errorf("--tolerance must be > 0")
	}
	return nil
}

func validatePracticeConfig(cfg model.PracticeConfig) error {
	if cfg.Measures <= 0 {
		return fmt.Errorf("--measures must be > 0")
	}
	if cfg.BPM <= 0 {
		return fmt.Errorf("--bpm must be > 0")
	}
	if cfg.Density < 0 || cfg.Density > 1 {
		return fmt.Errorf("--density must be between 0 and 1")
	}
	if cfg.Drums == "" {
		return fmt.Errorf("--drums must not be empty")
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if cfg.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if cfg.WeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	return nil
}

// parseDrumTypes parses a comma-separated drum list into unique drum types.
func parseDrumTypes(list string) ([]chart.DrumType, error) {
	parts := strings.Split(list, ",")
	drums := make([]chart.DrumType, 0, len(parts))
	seen := map[chart.DrumType]struct{}{}
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		drum, err := chart.ParseDrumType(name)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[drum]; ok {
			continue
		}
		seen[drum] = struct{}{}
		drums = append(drums, drum)
	}
	if len(drums) == 0 {
		return nil, fmt.Errorf("no drums given")
	}
	return drums, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# virgo configuration
# Uncomment a value to enable it. CLI flags override config values.

[play]
# songs-dir = %q
# difficulty = "hard"      # Preferred difficulty (%s)
# perfect-ms = %.0f        # Judging windows in milliseconds
# great-ms = %.0f
# good-ms = %.0f
# max-ms = %.0f            # Hits beyond this are ignored
# tolerance = %.2f         # Active-beat window in measures
# metronome = false        # Click on every beat
# no-bgm = false           # Never load background music
# midi-port = ""           # Substring of the MIDI input port name

[practice]
# measures = %d
# bpm = %.0f
# density = %.2f           # Probability of a note per sixteenth step (0-1)
# drums = %q
# focus-weak = false       # Bias generation toward weak drums
# weak-top = %d            # Number of weak drums to focus on
# weak-factor = %.1f       # Weight factor for weak drums
# weak-window = %d         # Number of recent plays to compute weak drums

[fetch]
# server-url = %q

[serve]
# port = %d
# songs-dir = %q

[keys]
# Drum name to key string. Every rune in the value strikes the drum.
# snare = "d"
# crash = "a"
`,
		config.DefaultSongsDir(),
		strings.Join(chart.Difficulties, ", "),
		timing.DefaultWindows.PerfectMs,
		timing.DefaultWindows.GreatMs,
		timing.DefaultWindows.GoodMs,
		timing.DefaultWindows.MaxMs,
		defaultTolerance,
		defaultMeasures,
		defaultBPM,
		defaultDensity,
		defaultPracticeDrums,
		defaultWeakTop,
		defaultWeakFactor,
		defaultWeakWindow,
		defaultServerURL,
		defaultServePort,
		config.DefaultSongsDir(),
	)
}
