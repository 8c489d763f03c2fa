// ABOUTME: Sine synthesis with exponential parameter smoothing
// ABOUTME: Shared audio parameters, phase accumulator and block renderer
// Package synth renders the fan tone.
//
// Params is the state shared between the metric sampler, manual controls and
// the audio render callback. Voice is the render callback's half: once per
// block it advances the exponential smoothing filter and renders the block
// with a phase-continuous Oscillator.
//
// Example:
//
//	params := synth.NewParams(1400, 0.01)
//	voice := synth.NewVoice(params, 44100, synth.DefaultTransitionSpeed)
//	params.SetTargets(2500, 0.5)
//	block := make([]float32, 512)
//	err := voice.Render(block)
package synth
