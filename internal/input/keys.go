// Package input translates keyboard and MIDI events into timestamped drum
// hits for the note matcher.
package input

import (
	"fmt"
	"time"
	"unicode"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/timing"
)

// Bindings maps key runes to the drum they strike.
type Bindings map[rune]chart.DrumType

// DefaultBindings follows the usual DTX keyboard layout: left hand on the
// cymbal side, right hand on the toms, bass drum under 'f' and space.
func DefaultBindings() Bindings {
	return Bindings{
		'a': chart.Crash,
		's': chart.HiHatClose,
		'w': chart.HiHatOpen,
		'd': chart.Snare,
		'f': chart.BassDrum,
		' ': chart.BassDrum,
		'j': chart.HighTom,
		'k': chart.LowTom,
		'l': chart.FloorTom,
		';': chart.Ride,
	}
}

// ParseBindings builds bindings from a config table of drum name to key
// string. Every rune in a value is bound to the named drum.
func ParseBindings(table map[string]string) (Bindings, error) {
	b := Bindings{}
	for name, keys := range table {
		drum, err := chart.ParseDrumType(name)
		if err != nil {
			return nil, err
		}
		if keys == "" {
			return nil, fmt.Errorf("no keys bound to drum %q", name)
		}
		for _, r := range keys {
			r = unicode.ToLower(r)
			if prev, ok := b[r]; ok && prev != drum {
				return nil, fmt.Errorf("key %q bound to both %s and %s", string(r), prev, drum)
			}
			b[r] = drum
		}
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("no key bindings configured")
	}
	return b, nil
}

// Hit resolves a pressed rune to a timestamped drum hit.
func (b Bindings) Hit(r rune, at time.Time) (timing.InputHit, bool) {
	drum, ok := b[unicode.ToLower(r)]
	if !ok {
		return timing.InputHit{}, false
	}
	return timing.InputHit{Drum: drum, Timestamp: at}, true
}
