package chart

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// SetDefChart is one difficulty slot declared by a SET.def.
type SetDefChart struct {
	Slot       int
	Label      string
	File       string
	Difficulty string
}

// SetDef is the parsed song definition file of a song folder.
type SetDef struct {
	Title    string
	Duration string // optional authored track length as "m:ss"
	Charts   []SetDefChart
}

// ParseSetDef reads a SET.def file listing a song's title and its
// per-difficulty chart files.
func ParseSetDef(filePath string) (SetDef, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return SetDef{}, fmt.Errorf("failed to read set.def: %w", err)
	}
	return parseSetDefText(decodeSetDefText(data)), nil
}

func parseSetDefText(text string) SetDef {
	def := SetDef{}
	slots := make(map[int]*SetDefChart)

	for _, line := range splitLines(text) {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if title, ok := commandValue(line, "TITLE"); ok {
			def.Title = title
			continue
		}
		if dur, ok := commandValue(line, "DURATION"); ok {
			def.Duration = dur
			continue
		}
		if slot, label, ok := slotValue(line, "LABEL"); ok {
			entry := slotEntry(slots, slot)
			entry.Label = label
			entry.Difficulty = DifficultyForLabel(label)
			continue
		}
		if slot, file, ok := slotValue(line, "FILE"); ok {
			slotEntry(slots, slot).File = normalizeRelPath(file)
		}
	}

	for _, entry := range slots {
		def.Charts = append(def.Charts, *entry)
	}
	sort.Slice(def.Charts, func(i, j int) bool {
		return def.Charts[i].Slot < def.Charts[j].Slot
	})
	return def
}

func slotEntry(slots map[int]*SetDefChart, slot int) *SetDefChart {
	if entry, ok := slots[slot]; ok {
		return entry
	}
	entry := &SetDefChart{Slot: slot}
	slots[slot] = entry
	return entry
}

// slotValue matches "#L<n>LABEL value" and "#L<n>FILE value" lines in their
// tolerant colon/space/bare forms.
func slotValue(line, key string) (slot int, value string, ok bool) {
	upper := strings.ToUpper(line)
	if !strings.HasPrefix(upper, "#L") {
		return 0, "", false
	}
	i := 2
	for i < len(upper) && upper[i] >= '0' && upper[i] <= '9' {
		slot = slot*10 + int(upper[i]-'0')
		i++
	}
	if i == 2 || !strings.HasPrefix(upper[i:], key) {
		return 0, "", false
	}
	value = strings.TrimSpace(line[i+len(key):])
	if strings.HasPrefix(value, ":") {
		value = strings.TrimSpace(value[1:])
	}
	return slot, value, true
}
