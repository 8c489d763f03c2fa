// ABOUTME: Offline rendering of the fan tone
// ABOUTME: Drives the voice from a synthetic load curve into an encoder
package fan

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/encode"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/synth"
)

// DefaultBlockFrames is the offline render block size
const DefaultBlockFrames = 512

// LoadCurve returns the load percent at offset t into the render
type LoadCurve func(t time.Duration) float64

// ConstantLoad holds the load at percent
func ConstantLoad(percent float64) LoadCurve {
	return func(time.Duration) float64 { return percent }
}

// SweepLoad ramps 0 -> 100 -> 0 percent over period
func SweepLoad(period time.Duration) LoadCurve {
	return func(t time.Duration) float64 {
		if period <= 0 {
			return 0
		}
		pos := math.Mod(float64(t), float64(period)) / float64(period)
		if pos < 0.5 {
			return pos * 200
		}
		return (1 - pos) * 200
	}
}

// RenderOptions configures an offline render
type RenderOptions struct {
	Range           RangeConfig
	TransitionSpeed float64
	Duration        time.Duration
	BlockFrames     int
	Load            LoadCurve
}

// RenderStats summarizes an offline render
type RenderStats struct {
	Frames int
	Blocks int
	Peak   float64
	// MaxStep is the largest sample-to-sample difference, a click detector
	MaxStep float64
	// Final is the parameter state after the last block
	Final synth.Snapshot
}

// RenderOffline renders opts.Duration of the fan tone into enc. The load curve
// is sampled every UpdateInterval of rendered time, exactly like the live
// sampler.
func RenderOffline(enc encode.Encoder, opts RenderOptions) (RenderStats, error) {
	if opts.Range == (RangeConfig{}) {
		opts.Range = DefaultRangeConfig()
	}
	if err := opts.Range.Validate(); err != nil {
		return RenderStats{}, err
	}
	if opts.Duration <= 0 {
		return RenderStats{}, errors.New("render duration must be positive")
	}
	if opts.BlockFrames <= 0 {
		opts.BlockFrames = DefaultBlockFrames
	}
	if opts.Load == nil {
		opts.Load = ConstantLoad(0)
	}

	format := opts.Range.Format()
	mapping := opts.Range.Mapping()
	params := synth.NewParams(opts.Range.MinFrequency, opts.Range.MinVolume)
	voice := synth.NewVoice(params, format.SampleRate, opts.TransitionSpeed)

	total := format.FramesFor(opts.Duration)
	sampleEvery := format.FramesFor(opts.Range.UpdateInterval)
	if sampleEvery < 1 {
		sampleEvery = 1
	}

	var stats RenderStats
	block := make([]float32, opts.BlockFrames)
	nextSample := 0
	var prev float32

	for stats.Frames < total {
		if stats.Frames >= nextSample {
			percent := opts.Load(format.DurationOf(stats.Frames))
			if err := params.SetTargets(mapping.Map(percent)); err != nil {
				return stats, fmt.Errorf("load curve at frame %d: %w", stats.Frames, err)
			}
			nextSample += sampleEvery
		}

		n := opts.BlockFrames
		if remaining := total - stats.Frames; remaining < n {
			n = remaining
		}
		// Never render across a sampling boundary
		if untilSample := nextSample - stats.Frames; untilSample < n {
			n = untilSample
		}

		out := block[:n]
		if err := voice.Render(out); err != nil {
			return stats, fmt.Errorf("render failed at frame %d: %w", stats.Frames, err)
		}

		for i, s := range out {
			if stats.Frames > 0 || i > 0 {
				stats.MaxStep = math.Max(stats.MaxStep, math.Abs(float64(s-prev)))
			}
			stats.Peak = math.Max(stats.Peak, math.Abs(float64(s)))
			prev = s
		}

		if err := enc.Encode(out); err != nil {
			return stats, fmt.Errorf("encode failed at frame %d: %w", stats.Frames, err)
		}

		stats.Frames += n
		stats.Blocks++
	}

	stats.Final = params.Snapshot()
	return stats, nil
}
