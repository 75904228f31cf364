package input

import (
	"strings"
	"testing"
	"time"

	"github.com/cwchanap/virgo/internal/chart"
)

func TestDefaultBindingsCoverEveryDrum(t *testing.T) {
	bound := map[chart.DrumType]bool{}
	for _, drum := range DefaultBindings() {
		bound[drum] = true
	}
	for _, drum := range chart.AllDrums {
		if !bound[drum] {
			t.Fatalf("expected a default key for %s", drum)
		}
	}
}

func TestParseBindings(t *testing.T) {
	b, err := ParseBindings(map[string]string{"snare": "dx", "bass": "f"})
	if err != nil {
		t.Fatalf("ParseBindings: %v", err)
	}
	if len(b) != 3 {
		t.Fatalf("expected 3 bound keys, got %d", len(b))
	}
	if b['d'] != chart.Snare || b['x'] != chart.Snare || b['f'] != chart.BassDrum {
		t.Fatalf("unexpected bindings: %v", b)
	}
}

func TestParseBindingsRejectsConflicts(t *testing.T) {
	_, err := ParseBindings(map[string]string{"snare": "d", "bass": "d"})
	if err == nil {
		t.Fatalf("expected conflict error")
	}
	if !strings.Contains(err.Error(), `key "d"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseBindingsRejectsUnknownDrum(t *testing.T) {
	if _, err := ParseBindings(map[string]string{"cowbell": "c"}); err == nil {
		t.Fatalf("expected unknown drum error")
	}
}

func TestParseBindingsRejectsEmpty(t *testing.T) {
	if _, err := ParseBindings(map[string]string{"snare": ""}); err == nil {
		t.Fatalf("expected error for empty key string")
	}
	if _, err := ParseBindings(nil); err == nil {
		t.Fatalf("expected error for empty table")
	}
}

func TestBindingsHit(t *testing.T) {
	b := DefaultBindings()
	at := time.Unix(500, 0)
	hit, ok := b.Hit('d', at)
	if !ok {
		t.Fatalf("expected 'd' to be bound")
	}
	if hit.Drum != chart.Snare || !hit.Timestamp.Equal(at) {
		t.Fatalf("unexpected hit: %+v", hit)
	}
	if hit, ok := b.Hit('D', at); !ok || hit.Drum != chart.Snare {
		t.Fatalf("expected uppercase key to resolve, got %v %v", hit, ok)
	}
	if _, ok := b.Hit('z', at); ok {
		t.Fatalf("expected 'z' to be unbound")
	}
}

func TestGMDrumMapCoversCoreKit(t *testing.T) {
	core := map[uint8]chart.DrumType{
		36: chart.BassDrum,
		38: chart.Snare,
		42: chart.HiHatClose,
		46: chart.HiHatOpen,
		49: chart.Crash,
		51: chart.Ride,
	}
	for key, want := range core {
		if got, ok := gmDrums[key]; !ok || got != want {
			t.Fatalf("expected gm key %d to map to %s, got %v", key, want, got)
		}
	}
	for key, drum := range gmDrums {
		if strings.HasPrefix(drum.String(), "drum(") {
			t.Fatalf("gm key %d maps to unnamed drum %d", key, drum)
		}
	}
}
