package input

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cwchanap/virgo/internal/chart"
	"github.com/cwchanap/virgo/internal/timing"
)

// gmDrums maps General MIDI percussion keys to drum voices.
var gmDrums = map[uint8]chart.DrumType{
	35: chart.BassDrum,   // acoustic bass drum
	36: chart.BassDrum,   // bass drum 1
	38: chart.Snare,      // acoustic snare
	40: chart.Snare,      // electric snare
	42: chart.HiHatClose, // closed hi-hat
	44: chart.HiHatClose, // pedal hi-hat
	46: chart.HiHatOpen,  // open hi-hat
	41: chart.FloorTom,   // low floor tom
	43: chart.FloorTom,   // high floor tom
	45: chart.LowTom,     // low tom
	47: chart.LowTom,     // low-mid tom
	48: chart.HighTom,    // hi-mid tom
	50: chart.HighTom,    // high tom
	49: chart.Crash,      // crash cymbal 1
	57: chart.Crash,      // crash cymbal 2
	51: chart.Ride,       // ride cymbal 1
	53: chart.Ride,       // ride bell
	59: chart.Ride,       // ride cymbal 2
}

// MIDIListener holds one open MIDI input port and forwards note-on events
// as drum hits timestamped on arrival.
type MIDIListener struct {
	drv    *rtmididrv.Driver
	in     drivers.In
	stop   func()
	logger *slog.Logger
}

// OpenMIDI connects to the first input port whose name contains portName
// (case-insensitive) and delivers hits to onHit. onHit is called from the
// driver's goroutine.
func OpenMIDI(portName string, logger *slog.Logger, onHit func(timing.InputHit)) (*MIDIListener, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("failed to init midi driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("failed to list midi inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(portName)) {
			found = in
			break
		}
	}
	if found == nil {
		_ = drv.Close()
		return nil, fmt.Errorf("midi input %q not found", portName)
	}
	if err := found.Open(); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("failed to open midi input %q: %w", portName, err)
	}
	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		if !msg.GetNoteStart(&ch, &key, &vel) {
			return
		}
		drum, ok := gmDrums[key]
		if !ok {
			logger.Debug("unmapped midi key", "key", key)
			return
		}
		onHit(timing.InputHit{Drum: drum, Timestamp: time.Now()})
	}, midi.HandleError(func(listenErr error) {
		logger.Warn("midi listener error", "port", found.String(), "err", listenErr)
	}))
	if err != nil {
		_ = found.Close()
		_ = drv.Close()
		return nil, fmt.Errorf("failed to listen on midi input %q: %w", portName, err)
	}
	logger.Info("midi input connected", "port", found.String())
	return &MIDIListener{drv: drv, in: found, stop: stop, logger: logger}, nil
}

// Close stops listening and releases the port and driver.
func (m *MIDIListener) Close() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	if m.in != nil {
		_ = m.in.Close()
		m.in = nil
	}
	if m.drv != nil {
		_ = m.drv.Close()
		m.drv = nil
	}
}
