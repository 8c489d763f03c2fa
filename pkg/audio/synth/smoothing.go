// ABOUTME: Exponential smoothing toward a target value
// ABOUTME: One step per render callback with a fixed transition speed
package synth

import "math"

const (
	// DefaultTransitionSpeed is the fraction of the remaining distance
	// covered per render callback
	DefaultTransitionSpeed = 0.03
)

// Smooth moves current toward target by the fraction alpha
func Smooth(current, target, alpha float64) float64 {
	return current + (target-current)*alpha
}

// StepsToSettle returns how many smoothing steps it takes for an initial
// distance to decay below tolerance. The remaining distance after n steps is
// distance*(1-alpha)^n.
func StepsToSettle(distance, tolerance, alpha float64) int {
	distance = math.Abs(distance)
	if distance <= tolerance {
		return 0
	}
	if alpha <= 0 || tolerance <= 0 {
		return -1
	}
	if alpha >= 1 {
		return 1
	}
	return int(math.Ceil(math.Log(tolerance/distance) / math.Log(1-alpha)))
}
