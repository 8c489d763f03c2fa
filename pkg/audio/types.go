// ABOUTME: Audio type definitions
// ABOUTME: Defines the stream format and sample conversion helpers
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// 16-bit PCM range
	MaxInt16 = 32767
	MinInt16 = -32768

	// MaxSampleRate bounds what any supported backend will accept
	MaxSampleRate = 384000
)

// Format describes an output stream format
type Format struct {
	SampleRate int
	Channels   int
}

// Validate checks that the format can be opened by an output backend
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.SampleRate > MaxSampleRate {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	return nil
}

// Nyquist returns the highest frequency representable at this sample rate
func (f Format) Nyquist() float64 {
	return float64(f.SampleRate) / 2
}

// FramesFor returns the number of frames covering d
func (f Format) FramesFor(d time.Duration) int {
	return int(int64(f.SampleRate) * int64(d) / int64(time.Second))
}

// DurationOf returns the playback time of the given number of frames
func (f Format) DurationOf(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

// FloatToInt16 converts a [-1, 1] sample to int16, clipping out-of-range input
func FloatToInt16(sample float32) int16 {
	return int16(FloatToPCM(sample, 16))
}

// FloatToPCM converts a [-1, 1] sample to a signed integer of the given bit depth
func FloatToPCM(sample float32, bitDepth int) int {
	if math.IsNaN(float64(sample)) {
		return 0
	}
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	max := float64(int64(1)<<(bitDepth-1) - 1)
	return int(math.Round(float64(sample) * max))
}

// PutFloat32LE packs samples into dst as little-endian IEEE-754 float32.
// dst must hold at least 4*len(samples) bytes.
func PutFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

// Float32FromLE unpacks little-endian float32 samples from src
func Float32FromLE(src []byte) []float32 {
	samples := make([]float32, len(src)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return samples
}
