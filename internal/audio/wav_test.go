package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func encodeTestWAV(t *testing.T, rate, channels int, samples []int16) []byte {
	t.Helper()
	var buf bytes.Buffer
	dataSize := uint32(len(samples) * 2)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*channels*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*2)) // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))         // bits per sample
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	for _, v := range samples {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func writeTestWAV(t *testing.T, path string, rate, channels int, samples []int16) {
	t.Helper()
	if err := os.WriteFile(path, encodeTestWAV(t, rate, channels, samples), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
}

func TestDecodeWAVMono(t *testing.T) {
	pcm, err := DecodeWAV(encodeTestWAV(t, 44100, 1, []int16{0, 16384, -16384, 32767}))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if pcm.SampleRate != 44100 {
		t.Fatalf("expected sample rate 44100, got %d", pcm.SampleRate)
	}
	if len(pcm.Samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(pcm.Samples))
	}
	if pcm.Samples[0] != 0 || pcm.Samples[1] != 0.5 || pcm.Samples[2] != -0.5 {
		t.Fatalf("unexpected samples: %v", pcm.Samples)
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	pcm, err := DecodeWAV(encodeTestWAV(t, 44100, 2, []int16{16384, 0, -16384, -16384}))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(pcm.Samples) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(pcm.Samples))
	}
	if pcm.Samples[0] != 0.25 || pcm.Samples[1] != -0.5 {
		t.Fatalf("unexpected downmix: %v", pcm.Samples)
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	wav := encodeTestWAV(t, 44100, 1, []int16{100, 200})
	extra := append([]byte("LIST"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(extra[4:], 4)
	extra = append(extra, []byte("INFO")...)
	spliced := append(append(append([]byte{}, wav[:12]...), extra...), wav[12:]...)
	pcm, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(pcm.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(pcm.Samples))
	}
}

func TestDecodeWAVRejectsFloatFormat(t *testing.T) {
	wav := encodeTestWAV(t, 44100, 1, []int16{0})
	wav[20] = 3 // IEEE float
	if _, err := DecodeWAV(wav); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeWAVMissingData(t *testing.T) {
	wav := encodeTestWAV(t, 44100, 1, []int16{0})
	if _, err := DecodeWAV(wav[:36]); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeWAVRejectsNonRIFF(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav file at all")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestBGMPlayerLoadRejectsWrongSampleRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bgm.wav")
	writeTestWAV(t, path, 22050, 1, []int16{0, 0, 0, 0})
	p := newBGMPlayer(NewMixer())
	if err := p.Load(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestBGMPlayerLoadSetsDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bgm.wav")
	writeTestWAV(t, path, 44100, 1, make([]int16, 441))
	p := newBGMPlayer(NewMixer())
	if err := p.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !almostEqual(p.Duration(), 0.01) {
		t.Fatalf("expected 0.01s duration, got %v", p.Duration())
	}
}
