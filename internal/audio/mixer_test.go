package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func readSamples(t *testing.T, m *Mixer, n int) []int16 {
	t.Helper()
	buf := make([]byte, n*2)
	if _, err := m.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[2*i : 2*i+2]))
	}
	return out
}

func toInt16(v float64) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}

type constVoice struct {
	val float64
	n   int
}

func (v *constVoice) Sample() (float64, bool) {
	if v.n <= 0 {
		return 0, true
	}
	v.n--
	return v.val, false
}

func TestMixerSchedulesTrackAtDeviceTime(t *testing.T) {
	m := NewMixer()
	track := make([]float32, 8)
	for i := range track {
		track[i] = 0.5
	}
	m.SetTrack(track)
	m.ScheduleTrack(4.0 / sampleRate)
	out := readSamples(t, m, 8)
	for i := 0; i < 4; i++ {
		if out[i] != 0 {
			t.Fatalf("expected silence at sample %d, got %d", i, out[i])
		}
	}
	want := toInt16(0.5)
	for i := 4; i < 8; i++ {
		if out[i] != want {
			t.Fatalf("expected %d at sample %d, got %d", want, i, out[i])
		}
	}
}

func TestMixerPauseKeepsTrackPosition(t *testing.T) {
	m := NewMixer()
	track := make([]float32, 8)
	for i := range track {
		track[i] = float32(i+1) / 10
	}
	m.SetTrack(track)
	m.ScheduleTrack(0)
	readSamples(t, m, 4)
	m.PauseTrack()
	if got := m.TrackPosition(); !almostEqual(got, 4.0/sampleRate) {
		t.Fatalf("expected position 4 samples, got %v", got)
	}
	for i, v := range readSamples(t, m, 2) {
		if v != 0 {
			t.Fatalf("expected silence while paused at sample %d, got %d", i, v)
		}
	}
	m.ScheduleTrack(m.DeviceNow())
	out := readSamples(t, m, 4)
	for i, v := range out {
		want := toInt16(float64(track[4+i]))
		if v != want {
			t.Fatalf("expected resumed sample %d to be %d, got %d", i, want, v)
		}
	}
}

func TestMixerRewindResetsTrack(t *testing.T) {
	m := NewMixer()
	track := []float32{0.25, 0.5, 0.75, 1}
	m.SetTrack(track)
	m.ScheduleTrack(0)
	readSamples(t, m, 3)
	m.RewindTrack()
	if got := m.TrackPosition(); got != 0 {
		t.Fatalf("expected position 0 after rewind, got %v", got)
	}
	m.ScheduleTrack(m.DeviceNow())
	out := readSamples(t, m, 2)
	if out[0] != toInt16(0.25) || out[1] != toInt16(0.5) {
		t.Fatalf("expected track restart from the top, got %v", out)
	}
}

func TestMixerVoiceMixingAndClipping(t *testing.T) {
	m := NewMixer()
	m.ScheduleVoice(&constVoice{val: 0.7, n: 4}, 0)
	m.ScheduleVoice(&constVoice{val: 0.7, n: 2}, 2.0/sampleRate)
	out := readSamples(t, m, 6)
	single := toInt16(0.7)
	if out[0] != single || out[1] != single {
		t.Fatalf("expected single voice level %d, got %v", single, out[:2])
	}
	if out[2] != 32767 || out[3] != 32767 {
		t.Fatalf("expected clipped overlap, got %v", out[2:4])
	}
	if out[4] != 0 || out[5] != 0 {
		t.Fatalf("expected silence after voices finished, got %v", out[4:])
	}
}

func TestMixerDeviceClockAdvances(t *testing.T) {
	m := NewMixer()
	if got := m.DeviceNow(); got != 0 {
		t.Fatalf("expected device clock at 0, got %v", got)
	}
	readSamples(t, m, 441)
	if got := m.DeviceNow(); !almostEqual(got, 0.01) {
		t.Fatalf("expected device clock at 0.01, got %v", got)
	}
}

func TestMixerTrackPositionClampsAtEnd(t *testing.T) {
	m := NewMixer()
	m.SetTrack([]float32{0.5, 0.5})
	m.ScheduleTrack(0)
	readSamples(t, m, 10)
	if got := m.TrackPosition(); !almostEqual(got, 2.0/sampleRate) {
		t.Fatalf("expected position clamped to track length, got %v", got)
	}
}

func TestMetronomeClickProducesAudio(t *testing.T) {
	m := NewMixer()
	mt := NewMetronome(m)
	mt.Click(true)
	out := readSamples(t, m, sampleRate/100)
	nonZero := false
	for _, v := range out {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatalf("expected non-zero audio output")
	}
}

func TestMetronomeNilReceiverIsSafe(t *testing.T) {
	var mt *Metronome
	mt.Click(false)
	NewMetronome(nil).Click(true)
}
