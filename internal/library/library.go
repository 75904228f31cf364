// Package library scans a songs directory for playable DTX charts.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/cwchanap/virgo/internal/chart"
)

// LooseChart is a bare .dtx file at the library root.
type LooseChart struct {
	Filename string
	Path     string
	Size     int64
}

// Library holds the scanned contents of a songs directory.
type Library struct {
	Songs []chart.Song
	Loose []LooseChart
}

// Scan reads root and returns every SET.def song folder and loose chart,
// sorted for stable listings. A missing root yields an empty library.
func Scan(root string) (*Library, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &Library{}, nil
		}
		return nil, fmt.Errorf("failed to read songs dir: %w", err)
	}
	lib := &Library{}
	for _, entry := range entries {
		if entry.IsDir() {
			song, err := LoadSong(filepath.Join(root, entry.Name()))
			if err != nil {
				// Folders without a usable SET.def are not songs.
				continue
			}
			lib.Songs = append(lib.Songs, song)
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".dtx") {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			lib.Loose = append(lib.Loose, LooseChart{
				Filename: entry.Name(),
				Path:     filepath.Join(root, entry.Name()),
				Size:     info.Size(),
			})
		}
	}
	sort.Slice(lib.Songs, func(i, j int) bool { return lib.Songs[i].ID < lib.Songs[j].ID })
	sort.Slice(lib.Loose, func(i, j int) bool { return lib.Loose[i].Filename < lib.Loose[j].Filename })
	return lib, nil
}

// FindSong looks a song up by its folder id.
func (l *Library) FindSong(id string) (chart.Song, bool) {
	for _, song := range l.Songs {
		if song.ID == id {
			return song, true
		}
	}
	return chart.Song{}, false
}

// LoadSong parses one song folder through its SET.def. Artist and BPM come
// from the first chart that declares them.
func LoadSong(dir string) (chart.Song, error) {
	def, err := chart.ParseSetDef(filepath.Join(dir, "SET.def"))
	if err != nil {
		return chart.Song{}, err
	}
	song := chart.Song{
		ID:       filepath.Base(dir),
		Dir:      dir,
		Title:    def.Title,
		Duration: def.Duration,
	}
	if song.Title == "" {
		song.Title = titleFromID(song.ID)
	}
	for _, sc := range def.Charts {
		if sc.File == "" || sc.Label == "" {
			continue
		}
		path := filepath.Join(dir, sc.File)
		info, err := os.Stat(path)
		if err != nil {
			// SET.def may reference charts that were never shipped.
			continue
		}
		meta, err := chart.ParseMetadata(path)
		if err != nil {
			continue
		}
		if song.Artist == "" && meta.Artist != "" {
			song.Artist = meta.Artist
		}
		if song.BPM == 0 && meta.BPM != 0 {
			song.BPM = meta.BPM
		}
		level := meta.Level
		if level == 0 {
			level = 50
		}
		song.Charts = append(song.Charts, chart.ChartRef{
			Difficulty: sc.Difficulty,
			Label:      sc.Label,
			Level:      level,
			File:       sc.File,
			Size:       info.Size(),
		})
	}
	if len(song.Charts) == 0 {
		return chart.Song{}, fmt.Errorf("song folder %s has no playable charts", dir)
	}
	return song, nil
}

// titleFromID turns a folder name like "neon_cascade" into "Neon Cascade".
func titleFromID(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
