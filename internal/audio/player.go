package audio

import "fmt"

// BGMPlayer streams one decoded track through a mixer. All times it reports
// or accepts are seconds on the mixer's device clock.
type BGMPlayer struct {
	mix *Mixer
}

// NewBGMPlayer opens the output device and returns a player attached to it.
func NewBGMPlayer() (*BGMPlayer, error) {
	ctx, err := audioContext()
	if err != nil {
		return nil, err
	}
	m := NewMixer()
	m.Attach(ctx)
	return &BGMPlayer{mix: m}, nil
}

func newBGMPlayer(m *Mixer) *BGMPlayer { return &BGMPlayer{mix: m} }

// Load decodes the WAV file at path and installs it as the current track.
func (p *BGMPlayer) Load(path string) error {
	pcm, err := DecodeWAVFile(path)
	if err != nil {
		return err
	}
	if pcm.SampleRate != sampleRate {
		return fmt.Errorf("%w: expected %dHz wav, got %d", ErrUnsupportedFormat, sampleRate, pcm.SampleRate)
	}
	p.mix.SetTrack(pcm.Samples)
	return nil
}

// Duration returns the loaded track length in seconds, 0 before a load.
func (p *BGMPlayer) Duration() float64 { return p.mix.TrackDuration() }

// Position returns seconds of track consumed so far.
func (p *BGMPlayer) Position() float64 { return p.mix.TrackPosition() }

// DeviceNow returns the device clock in seconds.
func (p *BGMPlayer) DeviceNow() float64 { return p.mix.DeviceNow() }

// ScheduleStart resumes the track when the device clock reaches deviceTime.
func (p *BGMPlayer) ScheduleStart(deviceTime float64) { p.mix.ScheduleTrack(deviceTime) }

// Pause freezes the track at its current position.
func (p *BGMPlayer) Pause() { p.mix.PauseTrack() }

// Rewind resets the track to its beginning.
func (p *BGMPlayer) Rewind() { p.mix.RewindTrack() }

// Mix exposes the player's mixer so the metronome can share the stream.
func (p *BGMPlayer) Mix() *Mixer { return p.mix }
