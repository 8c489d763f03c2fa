// ABOUTME: Linear mapping from load fraction to audio targets
// ABOUTME: Range interpolation for frequency and volume
package load

import "math"

// Range is an inclusive interval mapped onto by a load fraction
type Range struct {
	Min float64
	Max float64
}

// Lerp returns Min + (Max-Min)*fraction
func (r Range) Lerp(fraction float64) float64 {
	return r.Min + (r.Max-r.Min)*fraction
}

// Mapping maps a load fraction to a target frequency and volume
type Mapping struct {
	Frequency Range
	Volume    Range
}

// Map returns the target frequency and volume for a load percent in [0, 100]
func (m Mapping) Map(percent float64) (frequency, volume float64) {
	f := Fraction(percent)
	return m.Frequency.Lerp(f), m.Volume.Lerp(f)
}

// Fraction converts a load percent to a fraction clamped to [0, 1]
func Fraction(percent float64) float64 {
	switch {
	case math.IsNaN(percent) || percent <= 0:
		return 0
	case percent >= 100:
		return 1
	}
	return percent / 100
}
