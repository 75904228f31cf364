// Package fetch downloads songs and charts from a virgo DTX server.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
)

// LooseFile is a standalone chart stored outside any song folder.
type LooseFile struct {
	Filename string
	Size     int64
}

// Catalog lists the songs and loose chart files a server offers.
type Catalog struct {
	Songs []chart.Song
	Loose []LooseFile
}

// Report describes what a song download fetched and what it skipped.
type Report struct {
	Dir     string
	Files   []string
	Skipped []string
}

type chartPayload struct {
	Difficulty      string `json:"difficulty"`
	DifficultyLabel string `json:"difficulty_label"`
	Level           int    `json:"level"`
	Filename        string `json:"filename"`
	Size            int64  `json:"size"`
}

type songPayload struct {
	SongID   string         `json:"song_id"`
	Title    string         `json:"title"`
	Artist   string         `json:"artist"`
	BPM      float64        `json:"bpm"`
	Duration string         `json:"duration"`
	Charts   []chartPayload `json:"charts"`
}

type loosePayload struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type listPayload struct {
	Songs           []songPayload  `json:"songs"`
	IndividualFiles []loosePayload `json:"individual_files"`
}

// ListSongs fetches the song catalog from the server.
func ListSongs(ctx context.Context, serverURL string) (Catalog, error) {
	if serverURL == "" {
		return Catalog{}, fmt.Errorf("server url is required")
	}
	resp, err := httpRequest(ctx, endpointURL(serverURL, "dtx", "list"))
	if err != nil {
		return Catalog{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Catalog{}, fmt.Errorf("unexpected list status: %s", resp.Status)
	}

	var payload listPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Catalog{}, fmt.Errorf("failed to decode song list: %w", err)
	}

	catalog := Catalog{}
	for _, p := range payload.Songs {
		catalog.Songs = append(catalog.Songs, songFromPayload(p))
	}
	for _, f := range payload.IndividualFiles {
		catalog.Loose = append(catalog.Loose, LooseFile{Filename: f.Filename, Size: f.Size})
	}
	return catalog, nil
}

// DownloadSong fetches every chart of a song plus the BGM files the charts
// reference into songsDir, and reconstructs the folder's SET.def. BGM
// downloads are best effort; failures land in the report's Skipped list and
// playback degrades to silent at play time.
func DownloadSong(ctx context.Context, serverURL, songID, songsDir string) (Report, error) {
	if serverURL == "" {
		return Report{}, fmt.Errorf("server url is required")
	}
	if songID == "" {
		return Report{}, fmt.Errorf("song id is required")
	}
	if songsDir == "" {
		return Report{}, fmt.Errorf("songs directory is required")
	}

	catalog, err := ListSongs(ctx, serverURL)
	if err != nil {
		return Report{}, err
	}
	var song chart.Song
	found := false
	for _, s := range catalog.Songs {
		if s.ID == songID {
			song = s
			found = true
			break
		}
	}
	if !found {
		return Report{}, fmt.Errorf("song %q not found on server", songID)
	}
	if len(song.Charts) == 0 {
		return Report{}, fmt.Errorf("song %q has no charts", songID)
	}

	songDir := filepath.Join(songsDir, songID)
	if err := os.MkdirAll(songDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("failed to create song dir: %w", err)
	}

	report := Report{Dir: songDir}
	for _, ref := range song.Charts {
		destPath := filepath.Join(songDir, ref.File)
		fileURL := endpointURL(serverURL, "dtx", "download", songID, ref.File)
		if err := downloadFile(ctx, fileURL, destPath); err != nil {
			return Report{}, fmt.Errorf("failed to download chart %s: %w", ref.File, err)
		}
		report.Files = append(report.Files, ref.File)
	}

	for _, bgm := range bgmReferences(songDir, song.Charts) {
		destPath := filepath.Join(songDir, bgm)
		fileURL := endpointURL(serverURL, "dtx", "download", songID, bgm)
		if err := downloadFile(ctx, fileURL, destPath); err != nil {
			report.Skipped = append(report.Skipped, bgm)
			continue
		}
		report.Files = append(report.Files, bgm)
	}

	if err := writeSetDef(songDir, song); err != nil {
		return Report{}, err
	}
	return report, nil
}

// DownloadLoose fetches a standalone chart file into destDir and returns its
// path.
func DownloadLoose(ctx context.Context, serverURL, filename, destDir string) (string, error) {
	if serverURL == "" {
		return "", fmt.Errorf("server url is required")
	}
	if !strings.HasSuffix(filename, ".dtx") {
		return "", fmt.Errorf("only .dtx files can be fetched, got %q", filename)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination dir: %w", err)
	}
	destPath := filepath.Join(destDir, filepath.Base(filename))
	fileURL := endpointURL(serverURL, "dtx", "download", filename)
	if err := downloadFile(ctx, fileURL, destPath); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", filename, err)
	}
	return destPath, nil
}

// bgmReferences parses the downloaded charts and collects the unique BGM
// files they reference.
func bgmReferences(songDir string, refs []chart.ChartRef) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ref := range refs {
		parsed, err := chart.ParseChart(filepath.Join(songDir, ref.File))
		if err != nil || parsed.BGMFile == "" {
			continue
		}
		if _, ok := seen[parsed.BGMFile]; ok {
			continue
		}
		seen[parsed.BGMFile] = struct{}{}
		out = append(out, parsed.BGMFile)
	}
	return out
}

func writeSetDef(songDir string, song chart.Song) error {
	var b strings.Builder
	title := song.Title
	if title == "" {
		title = song.ID
	}
	fmt.Fprintf(&b, "#TITLE: %s\n", title)
	if song.Duration != "" {
		fmt.Fprintf(&b, "#DURATION: %s\n", song.Duration)
	}
	for i, ref := range song.Charts {
		slot := i + 1
		label := ref.Label
		if label == "" {
			label = strings.ToUpper(ref.Difficulty)
		}
		fmt.Fprintf(&b, "#L%dLABEL %s\n", slot, label)
		fmt.Fprintf(&b, "#L%dFILE %s\n", slot, ref.File)
	}
	path := filepath.Join(songDir, "SET.def")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write SET.def: %w", err)
	}
	return nil
}

func downloadFile(ctx context.Context, fileURL, destPath string) error {
	resp, err := httpRequest(ctx, fileURL)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected download status: %s", resp.Status)
	}

	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, "virgo-*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

func httpRequest(ctx context.Context, fileURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func endpointURL(serverURL string, segments ...string) string {
	base := strings.TrimRight(serverURL, "/")
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return base + "/" + strings.Join(escaped, "/")
}

func songFromPayload(p songPayload) chart.Song {
	song := chart.Song{
		ID:       p.SongID,
		Title:    p.Title,
		Artist:   p.Artist,
		BPM:      p.BPM,
		Duration: p.Duration,
	}
	for _, c := range p.Charts {
		song.Charts = append(song.Charts, chart.ChartRef{
			Difficulty: c.Difficulty,
			Label:      c.DifficultyLabel,
			Level:      c.Level,
			File:       c.Filename,
			Size:       c.Size,
		})
	}
	return song
}
