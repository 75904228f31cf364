package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwchanap/virgo/internal/chart"
)

const testListJSON = `{
	"songs": [
		{
			"song_id": "neon_cascade",
			"title": "Neon Cascade",
			"artist": "Aki",
			"bpm": 150,
			"duration": "1:30",
			"charts": [
				{"difficulty": "hard", "difficulty_label": "EXTREME", "level": 70, "filename": "ext.dtx", "size": 64}
			]
		}
	],
	"individual_files": [
		{"filename": "solo.dtx", "size": 32}
	]
}`

const testChartDTX = "#TITLE: Neon Cascade\n#BPM: 150\n#WAV01: bgm.ogg\n#00001: 01\n#00112: 0101\n"

func newTestServer(t *testing.T, withBGM bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dtx/list":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(testListJSON))
		case "/dtx/download/neon_cascade/ext.dtx":
			_, _ = w.Write([]byte(testChartDTX))
		case "/dtx/download/neon_cascade/bgm.ogg":
			if !withBGM {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("OggS"))
		case "/dtx/download/solo.dtx":
			_, _ = w.Write([]byte("#TITLE: Solo\n#BPM: 120\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestListSongs(t *testing.T) {
	server := newTestServer(t, true)
	catalog, err := ListSongs(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	if len(catalog.Songs) != 1 {
		t.Fatalf("expected 1 song, got %d", len(catalog.Songs))
	}
	song := catalog.Songs[0]
	if song.ID != "neon_cascade" || song.Title != "Neon Cascade" {
		t.Fatalf("unexpected song: %+v", song)
	}
	if song.Duration != "1:30" {
		t.Fatalf("expected duration 1:30, got %q", song.Duration)
	}
	if len(song.Charts) != 1 || song.Charts[0].Label != "EXTREME" {
		t.Fatalf("unexpected charts: %+v", song.Charts)
	}
	if song.Charts[0].File != "ext.dtx" || song.Charts[0].Level != 70 {
		t.Fatalf("unexpected chart ref: %+v", song.Charts[0])
	}
	if len(catalog.Loose) != 1 || catalog.Loose[0].Filename != "solo.dtx" {
		t.Fatalf("unexpected loose files: %+v", catalog.Loose)
	}
}

func TestListSongsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "boom"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	if _, err := ListSongs(context.Background(), server.URL); err == nil {
		t.Fatalf("expected error for server failure")
	}
}

func TestDownloadSong(t *testing.T) {
	server := newTestServer(t, true)
	songsDir := t.TempDir()

	report, err := DownloadSong(context.Background(), server.URL, "neon_cascade", songsDir)
	if err != nil {
		t.Fatalf("DownloadSong failed: %v", err)
	}
	if report.Dir != filepath.Join(songsDir, "neon_cascade") {
		t.Fatalf("unexpected song dir: %q", report.Dir)
	}
	if len(report.Files) != 2 {
		t.Fatalf("expected chart and bgm downloads, got %v", report.Files)
	}
	if len(report.Skipped) != 0 {
		t.Fatalf("expected no skips, got %v", report.Skipped)
	}

	chartData, err := os.ReadFile(filepath.Join(report.Dir, "ext.dtx"))
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	if string(chartData) != testChartDTX {
		t.Fatalf("unexpected chart content: %q", chartData)
	}
	if _, err := os.Stat(filepath.Join(report.Dir, "bgm.ogg")); err != nil {
		t.Fatalf("expected bgm file: %v", err)
	}

	def, err := chart.ParseSetDef(filepath.Join(report.Dir, "SET.def"))
	if err != nil {
		t.Fatalf("parse SET.def: %v", err)
	}
	if def.Title != "Neon Cascade" {
		t.Fatalf("unexpected SET.def title: %q", def.Title)
	}
	if def.Duration != "1:30" {
		t.Fatalf("unexpected SET.def duration: %q", def.Duration)
	}
	if len(def.Charts) != 1 || def.Charts[0].Label != "EXTREME" || def.Charts[0].File != "ext.dtx" {
		t.Fatalf("unexpected SET.def charts: %+v", def.Charts)
	}
}

func TestDownloadSongSkipsMissingBGM(t *testing.T) {
	server := newTestServer(t, false)
	songsDir := t.TempDir()

	report, err := DownloadSong(context.Background(), server.URL, "neon_cascade", songsDir)
	if err != nil {
		t.Fatalf("DownloadSong failed: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "bgm.ogg" {
		t.Fatalf("expected bgm skip, got %v", report.Skipped)
	}
	if _, err := os.Stat(filepath.Join(report.Dir, "bgm.ogg")); err == nil {
		t.Fatalf("expected no bgm file")
	}
}

func TestDownloadSongUnknownID(t *testing.T) {
	server := newTestServer(t, true)
	if _, err := DownloadSong(context.Background(), server.URL, "missing", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown song id")
	}
}

func TestDownloadLoose(t *testing.T) {
	server := newTestServer(t, true)
	destDir := t.TempDir()

	path, err := DownloadLoose(context.Background(), server.URL, "solo.dtx", destDir)
	if err != nil {
		t.Fatalf("DownloadLoose failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "#TITLE: Solo\n#BPM: 120\n" {
		t.Fatalf("unexpected content: %q", data)
	}

	if _, err := DownloadLoose(context.Background(), server.URL, "solo.ogg", destDir); err == nil {
		t.Fatalf("expected error for non-dtx file")
	}
}
