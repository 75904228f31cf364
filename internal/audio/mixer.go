// Package audio renders BGM tracks and metronome clicks into a single
// 44.1kHz mono output stream. The mixer's sample position doubles as the
// device clock the playback coordinator schedules against.
package audio

import (
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

const (
	sampleRate          = 44100
	bufferSizeBytes10ms = sampleRate / 100 * 2 // 10ms of 16-bit mono audio
)

var (
	otoCtx  *oto.Context
	otoOnce sync.Once
	otoErr  error
)

// audioContext opens the process-wide output device on first use.
func audioContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to open audio device: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// Voice generates PCM samples in the range [-1,1].
type Voice interface {
	// Sample returns the next sample and whether the voice has finished.
	Sample() (float64, bool)
}

type voiceState struct {
	start int
	v     Voice
}

// Mixer sums scheduled voices and at most one track into the PCM stream the
// output device pulls. All scheduling is in seconds on the device clock.
type Mixer struct {
	mu         sync.Mutex
	pos        int
	voices     []*voiceState
	track      []float32
	trackStart int
	trackBase  int
	playing    bool
	player     *oto.Player
}

// NewMixer returns a mixer that is not attached to an output device yet.
func NewMixer() *Mixer { return &Mixer{} }

// Attach wires the mixer to the output device and starts pulling samples.
func (m *Mixer) Attach(ctx *oto.Context) {
	p := ctx.NewPlayer(m)
	p.SetBufferSize(bufferSizeBytes10ms)
	p.Play()
	m.player = p
}

// DeviceNow returns the device clock in seconds.
func (m *Mixer) DeviceNow() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.pos) / sampleRate
}

// ScheduleVoice starts a voice when the device clock reaches at seconds.
func (m *Mixer) ScheduleVoice(v Voice, at float64) {
	m.mu.Lock()
	start := int(math.Round(at * sampleRate))
	if start < m.pos {
		start = m.pos
	}
	m.voices = append(m.voices, &voiceState{start: start, v: v})
	m.mu.Unlock()
}

// SetTrack replaces the track and rewinds it to the beginning.
func (m *Mixer) SetTrack(samples []float32) {
	m.mu.Lock()
	m.track = samples
	m.trackBase = 0
	m.playing = false
	m.mu.Unlock()
}

// ScheduleTrack resumes the track when the device clock reaches at seconds.
// A start already in the past advances into the track instead of delaying it.
func (m *Mixer) ScheduleTrack(at float64) {
	m.mu.Lock()
	m.trackStart = int(math.Round(at * sampleRate))
	m.playing = true
	m.mu.Unlock()
}

// PauseTrack freezes the track at its current position.
func (m *Mixer) PauseTrack() {
	m.mu.Lock()
	if m.playing {
		m.trackBase = m.trackIndexLocked()
		m.playing = false
	}
	m.mu.Unlock()
}

// RewindTrack stops the track and resets it to the beginning.
func (m *Mixer) RewindTrack() {
	m.mu.Lock()
	m.trackBase = 0
	m.playing = false
	m.mu.Unlock()
}

// TrackPosition returns seconds of track consumed so far.
func (m *Mixer) TrackPosition() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing {
		return float64(m.trackIndexLocked()) / sampleRate
	}
	return float64(m.trackBase) / sampleRate
}

// TrackDuration returns the loaded track length in seconds.
func (m *Mixer) TrackDuration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(len(m.track)) / sampleRate
}

func (m *Mixer) trackIndexLocked() int {
	idx := m.trackBase
	if m.pos > m.trackStart {
		idx += m.pos - m.trackStart
	}
	if idx > len(m.track) {
		idx = len(m.track)
	}
	return idx
}

// Read implements io.Reader for oto.Player.
func (m *Mixer) Read(p []byte) (int, error) {
	samples := len(p) / 2
	m.mu.Lock()
	for i := 0; i < samples; i++ {
		var sum float64
		for idx := 0; idx < len(m.voices); idx++ {
			vs := m.voices[idx]
			if m.pos >= vs.start {
				val, done := vs.v.Sample()
				sum += val
				if done {
					m.voices = append(m.voices[:idx], m.voices[idx+1:]...)
					idx--
				}
			}
		}
		if m.playing && m.pos >= m.trackStart {
			ti := m.trackBase + (m.pos - m.trackStart)
			if ti < len(m.track) {
				sum += float64(m.track[ti])
			}
		}
		if sum > 1 {
			sum = 1
		} else if sum < -1 {
			sum = -1
		}
		v := int16(sum * 32767)
		p[2*i] = byte(v)
		p[2*i+1] = byte(v >> 8)
		m.pos++
	}
	m.mu.Unlock()
	return len(p), nil
}
