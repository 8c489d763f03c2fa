// ABOUTME: Tests for audio types
// ABOUTME: Tests format helpers and sample conversion functions
package audio

import (
	"math"
	"testing"
	"time"
)

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"cd quality mono", Format{SampleRate: 44100, Channels: 1}, false},
		{"48k stereo", Format{SampleRate: 48000, Channels: 2}, false},
		{"zero rate", Format{SampleRate: 0, Channels: 1}, true},
		{"negative rate", Format{SampleRate: -1, Channels: 1}, true},
		{"absurd rate", Format{SampleRate: 10_000_000, Channels: 1}, true},
		{"no channels", Format{SampleRate: 44100, Channels: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFormatFramesAndDuration(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 1}

	if got := f.FramesFor(10 * time.Millisecond); got != 441 {
		t.Errorf("expected 441 frames, got %d", got)
	}
	if got := f.DurationOf(44100); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
	if got := f.Nyquist(); got != 22050 {
		t.Errorf("expected nyquist 22050, got %f", got)
	}
	if got := (Format{}).DurationOf(100); got != 0 {
		t.Errorf("expected 0 duration for empty format, got %v", got)
	}
}

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"full scale positive", 1, MaxInt16},
		{"full scale negative", -1, -MaxInt16},
		{"half", 0.5, 16384},
		{"clip positive", 1.5, MaxInt16},
		{"clip negative", -2, -MaxInt16},
		{"nan", float32(math.NaN()), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FloatToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestFloatToPCM24(t *testing.T) {
	if got := FloatToPCM(1, 24); got != 8388607 {
		t.Errorf("expected 8388607, got %d", got)
	}
	if got := FloatToPCM(-1, 24); got != -8388607 {
		t.Errorf("expected -8388607, got %d", got)
	}
}

func TestPutFloat32LERoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.5, 1, -1}
	buf := make([]byte, len(samples)*4)

	PutFloat32LE(buf, samples)

	// 0.25 is 0x3E800000
	if buf[4] != 0x00 || buf[5] != 0x00 || buf[6] != 0x80 || buf[7] != 0x3E {
		t.Errorf("unexpected encoding for 0.25: % x", buf[4:8])
	}

	decoded := Float32FromLE(buf)
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("sample %d: expected %f, got %f", i, samples[i], decoded[i])
		}
	}
}
