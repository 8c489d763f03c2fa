// ABOUTME: Shared audio parameters for the fan tone
// ABOUTME: Current and target frequency/volume guarded by a short-hold mutex
package synth

import (
	"fmt"
	"math"
	"sync"
)

const (
	// MinFrequency is the lowest frequency Params will hold
	MinFrequency = 1.0
)

// Snapshot is a consistent view of the audio parameters
type Snapshot struct {
	Frequency       float64
	TargetFrequency float64
	Volume          float64
	TargetVolume    float64
}

// Params holds the current and target frequency and volume.
//
// Frequency and volume are always read and written together. The mutex is
// only ever held for a handful of float operations, so the render callback
// never waits on it for longer than that.
type Params struct {
	mu      sync.Mutex
	current Snapshot
}

// NewParams creates parameters with current and target set to the given values
func NewParams(frequency, volume float64) *Params {
	frequency = clampFrequency(frequency)
	volume = clampVolume(volume)
	return &Params{
		current: Snapshot{
			Frequency:       frequency,
			TargetFrequency: frequency,
			Volume:          volume,
			TargetVolume:    volume,
		},
	}
}

// Snapshot returns the current state
func (p *Params) Snapshot() Snapshot {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()
	return s
}

// SetTargets sets the frequency and volume the smoothing filter converges to.
// Non-finite values are rejected and the previous targets are kept.
func (p *Params) SetTargets(frequency, volume float64) error {
	if !finite(frequency) || !finite(volume) {
		return fmt.Errorf("invalid targets: %v Hz, volume %v", frequency, volume)
	}
	frequency = clampFrequency(frequency)
	volume = clampVolume(volume)

	p.mu.Lock()
	p.current.TargetFrequency = frequency
	p.current.TargetVolume = volume
	p.mu.Unlock()
	return nil
}

// SetFrequency jumps current and target frequency to hz without smoothing
func (p *Params) SetFrequency(hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) || hz <= 0 {
		return fmt.Errorf("invalid frequency: %v", hz)
	}
	hz = clampFrequency(hz)

	p.mu.Lock()
	p.current.Frequency = hz
	p.current.TargetFrequency = hz
	p.mu.Unlock()
	return nil
}

// SetVolume jumps current and target volume to v without smoothing
func (p *Params) SetVolume(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return fmt.Errorf("invalid volume: %v (must be within 0..1)", v)
	}

	p.mu.Lock()
	p.current.Volume = v
	p.current.TargetVolume = v
	p.mu.Unlock()
	return nil
}

// Step applies one smoothing step with factor alpha and returns the state
// before and after it. A step that would produce a non-finite value stores
// nothing, so after equals before.
func (p *Params) Step(alpha float64) (before, after Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before = p.current
	freq := Smooth(before.Frequency, before.TargetFrequency, alpha)
	volume := Smooth(before.Volume, before.TargetVolume, alpha)
	if !finite(freq) || !finite(volume) {
		return before, before
	}

	p.current.Frequency = clampFrequency(freq)
	p.current.Volume = clampVolume(volume)
	return before, p.current
}

func clampFrequency(hz float64) float64 {
	if hz < MinFrequency || !finite(hz) {
		return MinFrequency
	}
	return hz
}

func clampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
