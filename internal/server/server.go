// Package server exposes a song library over HTTP for remote fetch.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/library"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

var chartFileExts = []string{".dtx", ".ogg", ".mp3", ".wav"}

// Server serves DTX songs and loose charts from a songs directory.
type Server struct {
	songsDir string
	logger   *slog.Logger
}

// New creates a server for the given songs directory.
func New(songsDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{songsDir: songsDir, logger: logger}
}

// Handler builds the routed HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/dtx/list", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/dtx/download/{filename}", s.handleDownloadLoose).Methods(http.MethodGet)
	router.HandleFunc("/dtx/download/{songID}/{filename}", s.handleDownloadChart).Methods(http.MethodGet)
	router.HandleFunc("/dtx/metadata/{filename}", s.handleMetadata).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// ListenAndServe serves the handler on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("serving song library", "addr", addr, "dir", s.songsDir)
	return http.ListenAndServe(addr, s.Handler())
}

type rootPayload struct {
	Message string `json:"message"`
	Version string `json:"version"`
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
	Artist   string         `json:"artist,omitempty"`
	BPM      float64        `json:"bpm,omitempty"`
	Duration string         `json:"duration,omitempty"`
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

type metadataPayload struct {
	Filename string          `json:"filename"`
	Metadata metadataContent `json:"metadata"`
}

type metadataContent struct {
	Title  string  `json:"title,omitempty"`
	Artist string  `json:"artist,omitempty"`
	BPM    float64 `json:"bpm,omitempty"`
	Level  int     `json:"level,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootPayload{Message: "Virgo DTX Server", Version: Version})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	lib, err := library.Scan(s.songsDir)
	if err != nil {
		s.logger.Warn("library scan failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Error listing DTX songs: "+err.Error())
		return
	}

	payload := listPayload{
		Songs:           make([]songPayload, 0, len(lib.Songs)),
		IndividualFiles: make([]loosePayload, 0, len(lib.Loose)),
	}
	for _, song := range lib.Songs {
		payload.Songs = append(payload.Songs, songToPayload(song))
	}
	for _, loose := range lib.Loose {
		payload.IndividualFiles = append(payload.IndividualFiles, loosePayload{
			Filename: loose.Filename,
			Size:     loose.Size,
		})
	}
	s.logger.Debug("listed songs", "songs", len(payload.Songs), "loose", len(payload.IndividualFiles))
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDownloadLoose(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if !safeName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	if !strings.HasSuffix(filename, ".dtx") {
		writeError(w, http.StatusBadRequest, "Invalid file type. Only .dtx files are allowed")
		return
	}
	path := filepath.Join(s.songsDir, filename)
	if !fileExists(path) {
		writeError(w, http.StatusNotFound, "DTX file not found")
		return
	}
	serveFile(w, r, path, filename)
}

func (s *Server) handleDownloadChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	songID := vars["songID"]
	filename := vars["filename"]
	if !safeName(songID) || !safeName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	if !allowedChartFile(filename) {
		writeError(w, http.StatusBadRequest, "Invalid file type. Only .dtx, .ogg, .mp3, and .wav files are allowed")
		return
	}
	songDir := filepath.Join(s.songsDir, songID)
	info, err := os.Stat(songDir)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusNotFound, "Song not found")
		return
	}
	path := filepath.Join(songDir, filename)
	if !fileExists(path) {
		writeError(w, http.StatusNotFound, "Chart file not found")
		return
	}
	serveFile(w, r, path, songID+"_"+filename)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if !safeName(filename) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	if !strings.HasSuffix(filename, ".dtx") {
		writeError(w, http.StatusBadRequest, "Invalid file type. Only .dtx files are allowed")
		return
	}
	path := filepath.Join(s.songsDir, filename)
	if !fileExists(path) {
		writeError(w, http.StatusNotFound, "DTX file not found")
		return
	}
	meta, err := chart.ParseMetadata(path)
	if err != nil {
		s.logger.Warn("metadata parse failed", "file", filename, "err", err)
		writeError(w, http.StatusInternalServerError, "Error reading DTX file: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metadataPayload{
		Filename: filename,
		Metadata: metadataContent{
			Title:  meta.Title,
			Artist: meta.Artist,
			BPM:    meta.BPM,
			Level:  meta.Level,
		},
	})
}

func songToPayload(song chart.Song) songPayload {
	payload := songPayload{
		SongID:   song.ID,
		Title:    song.Title,
		Artist:   song.Artist,
		BPM:      song.BPM,
		Duration: song.Duration,
		Charts:   make([]chartPayload, 0, len(song.Charts)),
	}
	for _, ref := range song.Charts {
		payload.Charts = append(payload.Charts, chartPayload{
			Difficulty:      ref.Difficulty,
			DifficultyLabel: ref.Label,
			Level:           ref.Level,
			Filename:        ref.File,
			Size:            ref.Size,
		})
	}
	return payload
}

func allowedChartFile(filename string) bool {
	for _, ext := range chartFileExts {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// safeName rejects empty names and anything that could escape the songs
// directory. Route variables never contain a slash, but "." and ".." still
// match a single segment.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func serveFile(w http.ResponseWriter, r *http.Request, path, downloadName string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
