package audio

import "math"

// Metronome emits procedural clicks through a shared mixer, so it keeps
// sounding when no BGM track is loaded.
type Metronome struct {
	mix *Mixer
}

// NewMetronome returns a metronome playing through m.
func NewMetronome(m *Mixer) *Metronome { return &Metronome{mix: m} }

// Click plays one click now. Accented clicks mark measure starts.
func (mt *Metronome) Click(accent bool) {
	if mt == nil || mt.mix == nil {
		return
	}
	mt.mix.ScheduleVoice(newClickVoice(accent), mt.mix.DeviceNow())
}

// clickVoice is a short sine burst with an exponential decay.
type clickVoice struct {
	freq float64
	gain float64
	i, n int
}

func newClickVoice(accent bool) *clickVoice {
	v := &clickVoice{freq: 880, gain: 0.5, n: sampleRate / 20}
	if accent {
		v.freq = 1760
		v.gain = 0.8
	}
	return v
}

func (v *clickVoice) Sample() (float64, bool) {
	if v.i >= v.n {
		return 0, true
	}
	t := float64(v.i) / sampleRate
	env := math.Exp(-40 * t)
	v.i++
	return math.Sin(2*math.Pi*v.freq*t) * env * v.gain, false
}
