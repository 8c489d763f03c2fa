// ABOUTME: Phase-accumulating sine oscillator
// ABOUTME: Keeps phase continuous across blocks and frequency changes
package synth

import "math"

// Oscillator generates a sine wave from a running phase measured in cycles
type Oscillator struct {
	sampleRate float64
	phase      float64
}

// NewOscillator creates an oscillator at phase 0
func NewOscillator(sampleRate int) Oscillator {
	return Oscillator{sampleRate: float64(sampleRate)}
}

// Next returns the sample at the current phase and advances it by one
// sample at freq
func (o *Oscillator) Next(freq float64) float64 {
	s := math.Sin(2 * math.Pi * o.phase)
	o.phase += freq / o.sampleRate
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
	return s
}

// Phase returns the current phase in [0, 1)
func (o *Oscillator) Phase() float64 {
	return o.phase
}

// SetPhase sets the phase, wrapping it into [0, 1)
func (o *Oscillator) SetPhase(phase float64) {
	o.phase = phase - math.Floor(phase)
}
