package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Waveform is mono audio normalised to [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// LoadWaveform decodes a PCM WAV file, averaging channels to mono.
func LoadWaveform(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth < 1 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return &Waveform{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}
