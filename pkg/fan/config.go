// ABOUTME: Engine configuration and defaults
// ABOUTME: Frequency/volume ranges, timing and backend selection
package fan

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/output"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/synth"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/load"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultMinFrequency   = 1400.0
	DefaultMaxFrequency   = 2500.0
	DefaultMinVolume      = 0.01
	DefaultMaxVolume      = 0.5
	DefaultUpdateInterval = load.DefaultInterval
	DefaultSampleRate     = 44100
)

// RangeConfig maps load onto the tone
type RangeConfig struct {
	MinFrequency   float64
	MaxFrequency   float64
	MinVolume      float64
	MaxVolume      float64
	UpdateInterval time.Duration
	SampleRate     int
}

// DefaultRangeConfig returns the stock fan range
func DefaultRangeConfig() RangeConfig {
	return RangeConfig{
		MinFrequency:   DefaultMinFrequency,
		MaxFrequency:   DefaultMaxFrequency,
		MinVolume:      DefaultMinVolume,
		MaxVolume:      DefaultMaxVolume,
		UpdateInterval: DefaultUpdateInterval,
		SampleRate:     DefaultSampleRate,
	}
}

// Validate reports the first invalid field
func (r RangeConfig) Validate() error {
	if r.SampleRate <= 0 || r.SampleRate > audio.MaxSampleRate {
		return &ConfigError{Field: "sample_rate", Value: fmt.Sprint(r.SampleRate), Err: errors.New("out of range")}
	}
	nyquist := float64(r.SampleRate) / 2
	for _, f := range []struct {
		name  string
		value float64
	}{{"min_freq", r.MinFrequency}, {"max_freq", r.MaxFrequency}} {
		if math.IsNaN(f.value) || f.value < synth.MinFrequency || f.value > nyquist {
			return &ConfigError{Field: f.name, Value: fmt.Sprint(f.value),
				Err: fmt.Errorf("must be within [%g, %g]", synth.MinFrequency, nyquist)}
		}
	}
	for _, v := range []struct {
		name  string
		value float64
	}{{"min_volume", r.MinVolume}, {"max_volume", r.MaxVolume}} {
		if math.IsNaN(v.value) || v.value < 0 || v.value > 1 {
			return &ConfigError{Field: v.name, Value: fmt.Sprint(v.value), Err: errors.New("must be within [0, 1]")}
		}
	}
	if r.UpdateInterval <= 0 {
		return &ConfigError{Field: "update_interval", Value: r.UpdateInterval.String(), Err: errors.New("must be positive")}
	}
	return nil
}

// Mapping returns the load-to-tone mapping
func (r RangeConfig) Mapping() load.Mapping {
	return load.Mapping{
		Frequency: load.Range{Min: r.MinFrequency, Max: r.MaxFrequency},
		Volume:    load.Range{Min: r.MinVolume, Max: r.MaxVolume},
	}
}

// Format returns the output stream format
func (r RangeConfig) Format() audio.Format {
	return audio.Format{SampleRate: r.SampleRate, Channels: 1}
}

// Config holds engine configuration
type Config struct {
	Range RangeConfig

	// TransitionSpeed is the per-callback smoothing factor (default 0.03)
	TransitionSpeed float64

	// ManualHold releases a manual override after this long without a manual
	// adjustment. Zero holds until ResumeAutomatic.
	ManualHold time.Duration

	// Backend names the output backend (default "oto")
	Backend string

	// Buffer is the requested device buffer duration (0 = backend default)
	Buffer time.Duration

	// Output overrides Backend with a ready-made output
	Output output.Output

	// Source overrides the CPU load source
	Source load.Source

	// OnError is called when a running stream fails
	OnError func(error)

	Logger *zap.Logger
}
