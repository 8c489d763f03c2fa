// ABOUTME: Block renderer for the fan tone
// ABOUTME: Smooths once per block and ramps frequency/volume across the block
package synth

import (
	"errors"
	"math"
)

// ErrInvalidParams is returned when the shared parameters hold values that
// cannot be rendered
var ErrInvalidParams = errors.New("audio parameters are not finite")

// Voice renders the fan tone from shared Params.
//
// Smoothing runs once per Render call, so the exponential time constant
// follows the callback cadence. Inside a block the frequency and volume ramp
// linearly from the values the previous block ended on to the newly smoothed
// ones, which keeps both the waveform and its envelope free of steps at block
// boundaries.
type Voice struct {
	params *Params
	osc    Oscillator
	alpha  float64
	limit  float64

	// values the previous block ended on
	freq   float64
	volume float64
	primed bool
}

// NewVoice creates a voice rendering at sampleRate with transition speed alpha
func NewVoice(params *Params, sampleRate int, alpha float64) *Voice {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultTransitionSpeed
	}
	return &Voice{
		params: params,
		osc:    NewOscillator(sampleRate),
		alpha:  alpha,
		limit:  float64(sampleRate) / 2,
	}
}

// Alpha returns the transition speed
func (v *Voice) Alpha() float64 {
	return v.alpha
}

// Render fills out with the next block of mono samples. On error out is
// silenced; Params never stores a non-finite step, so the parameters keep
// their last finite values.
func (v *Voice) Render(out []float32) error {
	if len(out) == 0 {
		return nil
	}

	_, next := v.params.Step(v.alpha)
	if !next.finite() {
		silence(out)
		return ErrInvalidParams
	}

	targetFreq := math.Min(next.Frequency, v.limit)
	if !v.primed {
		v.freq = targetFreq
		v.volume = next.Volume
		v.primed = true
	}

	n := float64(len(out))
	df := (targetFreq - v.freq) / n
	dv := (next.Volume - v.volume) / n

	freq, volume := v.freq, v.volume
	for i := range out {
		freq += df
		volume += dv
		out[i] = float32(v.osc.Next(freq) * volume)
	}

	v.freq = targetFreq
	v.volume = next.Volume
	return nil
}

// Reset forgets the previous block so the next Render starts without a ramp.
// The oscillator phase is kept.
func (v *Voice) Reset() {
	v.primed = false
}

func (s Snapshot) finite() bool {
	return finite(s.Frequency) && finite(s.Volume) &&
		finite(s.TargetFrequency) && finite(s.TargetVolume)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func silence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
