package chart

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

// drumChannels maps DTX object channels to drum voices. The left crash
// channel (1A) shares the crash lane.
var drumChannels = map[string]DrumType{
	"11": HiHatClose,
	"12": Snare,
	"13": BassDrum,
	"14": HighTom,
	"15": LowTom,
	"16": Crash,
	"17": FloorTom,
	"18": HiHatOpen,
	"19": Ride,
	"1A": Crash,
}

const bgmChannel = "01"

// ParseChart reads a DTX file and parses metadata, WAV references and every
// drum object line into a playable chart.
func ParseChart(filePath string) (*Chart, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart: %w", err)
	}
	return parseChartText(decodeChartText(data)), nil
}

// ParseMetadata reads only the header fields of a DTX file.
func ParseMetadata(filePath string) (Metadata, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read chart: %w", err)
	}
	meta := Metadata{}
	for _, line := range splitLines(decodeChartText(data)) {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if _, _, _, ok := parseObjectLine(line); ok {
			continue
		}
		applyMetadataLine(line, &meta)
	}
	return meta, nil
}

func parseChartText(text string) *Chart {
	chart := &Chart{TimeSig: DefaultTimeSignature}
	meta := Metadata{}
	wavFiles := make(map[string]string)
	pathWav := ""

	type object struct {
		measure int
		channel string
		chips   []string
	}
	var objects []object

	for _, line := range splitLines(text) {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if measure, channel, chips, ok := parseObjectLine(line); ok {
			objects = append(objects, object{measure: measure, channel: channel, chips: chips})
			continue
		}
		if id, file, ok := parseWavLine(line); ok {
			wavFiles[id] = file
			continue
		}
		if value, ok := commandValue(line, "PATH_WAV"); ok {
			pathWav = normalizeRelPath(value)
			continue
		}
		applyMetadataLine(line, &meta)
	}

	chart.Title = meta.Title
	chart.Artist = meta.Artist
	chart.BPM = meta.BPM
	chart.Level = meta.Level

	seen := make(map[string]struct{})
	bgmSet := false
	var bgmPos float64
	var bgmChip string
	for _, obj := range objects {
		if obj.channel == bgmChannel {
			for k, chip := range obj.chips {
				if chip == "00" {
					continue
				}
				pos := float64(obj.measure) + float64(k)/float64(len(obj.chips))
				if !bgmSet || pos < bgmPos {
					bgmSet = true
					bgmPos = pos
					bgmChip = chip
				}
			}
			continue
		}
		drum, ok := drumChannels[obj.channel]
		if !ok {
			continue
		}
		interval := IntervalForDivision(len(obj.chips))
		for k, chip := range obj.chips {
			if chip == "00" {
				continue
			}
			offset := float64(k) / float64(len(obj.chips))
			key := fmt.Sprintf("%d:%d:%.6f", obj.measure, drum, offset)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			chart.Notes = append(chart.Notes, Note{
				MeasureNumber: obj.measure + 1,
				MeasureOffset: offset,
				Drum:          drum,
				Interval:      interval,
			})
		}
	}

	sort.Slice(chart.Notes, func(i, j int) bool {
		pi, pj := chart.Notes[i].TimePosition(), chart.Notes[j].TimePosition()
		if pi != pj {
			return pi < pj
		}
		return chart.Notes[i].Drum < chart.Notes[j].Drum
	})

	if bgmSet {
		if file, ok := wavFiles[bgmChip]; ok {
			chart.BGMFile = joinRelPath(pathWav, file)
		}
		if chart.BPM > 0 {
			chart.BGMOffset = bgmPos * chart.TimeSig.SecondsPerMeasure(chart.BPM)
		}
	}
	return chart
}

// applyMetadataLine matches the tolerant DTX header forms "#KEY: value",
// "#KEY value" and "#KEYvalue".
func applyMetadataLine(line string, meta *Metadata) {
	if value, ok := commandValue(line, "TITLE"); ok {
		meta.Title = value
		return
	}
	if value, ok := commandValue(line, "ARTIST"); ok {
		meta.Artist = value
		return
	}
	if value, ok := commandValue(line, "BPM"); ok {
		if bpm, err := strconv.ParseFloat(value, 64); err == nil {
			meta.BPM = bpm
		}
		return
	}
	if value, ok := commandValue(line, "DLEVEL"); ok {
		if level, err := strconv.Atoi(value); err == nil {
			meta.Level = level
		}
	}
}

func commandValue(line, key string) (string, bool) {
	prefix := "#" + key
	if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	value := strings.TrimSpace(line[len(prefix):])
	if strings.HasPrefix(value, ":") {
		value = strings.TrimSpace(value[1:])
	}
	return value, true
}

func parseWavLine(line string) (id, file string, ok bool) {
	value, ok := commandValue(line, "WAV")
	if !ok || len(value) < 2 {
		return "", "", false
	}
	id = strings.ToUpper(value[:2])
	if !isChipID(id) {
		return "", "", false
	}
	file = strings.TrimSpace(value[2:])
	if strings.HasPrefix(file, ":") {
		file = strings.TrimSpace(file[1:])
	}
	if file == "" {
		return "", "", false
	}
	return id, normalizeRelPath(file), true
}

// parseObjectLine recognizes "#mmmCC: chips" object lines, where mmm is the
// measure number and CC the channel.
func parseObjectLine(line string) (measure int, channel string, chips []string, ok bool) {
	body := line[1:]
	if len(body) < 5 {
		return 0, "", nil, false
	}
	for i := 0; i < 3; i++ {
		if body[i] < '0' || body[i] > '9' {
			return 0, "", nil, false
		}
	}
	channel = strings.ToUpper(body[3:5])
	if !isChipID(channel) {
		return 0, "", nil, false
	}
	rest := strings.TrimSpace(body[5:])
	if strings.HasPrefix(rest, ":") {
		rest = strings.TrimSpace(rest[1:])
	}
	raw := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '_' {
			return -1
		}
		return r
	}, rest)
	if len(raw)%2 != 0 {
		return 0, "", nil, false
	}
	for i := 0; i+2 <= len(raw); i += 2 {
		chip := strings.ToUpper(raw[i : i+2])
		if !isChipID(chip) {
			return 0, "", nil, false
		}
		chips = append(chips, chip)
	}
	measure = int(body[0]-'0')*100 + int(body[1]-'0')*10 + int(body[2]-'0')
	return measure, channel, chips, true
}

func isChipID(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(strings.TrimPrefix(line, "\uFEFF"))
	}
	return lines
}

func normalizeRelPath(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
}

func joinRelPath(dir, file string) string {
	if dir == "" {
		return file
	}
	return path.Join(dir, file)
}
