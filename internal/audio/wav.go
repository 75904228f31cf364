package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrUnsupportedFormat marks a BGM file the player cannot decode. Callers
// treat it as recoverable and fall back to a metronome-only session.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// PCM holds a decoded track as mono samples in the range [-1,1].
type PCM struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the track length in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// DecodeWAVFile reads and decodes a RIFF WAVE file.
func DecodeWAVFile(path string) (*PCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav: %w", err)
	}
	return DecodeWAV(data)
}

// DecodeWAV decodes 16-bit PCM RIFF WAVE data. Stereo tracks are downmixed
// to mono; unknown chunks are skipped.
func DecodeWAV(data []byte) (*PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedFormat)
	}
	var (
		fmtSeen     bool
		audioFormat int
		channels    int
		rate        int
		bits        int
		raw         []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if off+size > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrUnsupportedFormat, id)
		}
		body := data[off : off+size]
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			audioFormat = int(binary.LittleEndian.Uint16(body[0:2]))
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
			fmtSeen = true
		case "data":
			raw = body
		}
		off += size
		if size%2 == 1 {
			off++ // chunk bodies are word-aligned
		}
	}
	if !fmtSeen || raw == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrUnsupportedFormat)
	}
	if audioFormat != 1 || bits != 16 {
		return nil, fmt.Errorf("%w: want 16-bit pcm, got format %d at %d bits", ErrUnsupportedFormat, audioFormat, bits)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	frameBytes := 2 * channels
	frames := len(raw) / frameBytes
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		v := int32(int16(binary.LittleEndian.Uint16(raw[base : base+2])))
		if channels == 2 {
			r := int32(int16(binary.LittleEndian.Uint16(raw[base+2 : base+4])))
			v = (v + r) / 2
		}
		samples[i] = float32(v) / 32768
	}
	return &PCM{Samples: samples, SampleRate: rate}, nil
}
