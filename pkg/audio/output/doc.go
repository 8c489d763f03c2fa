// ABOUTME: Audio output package for playing the rendered tone
// ABOUTME: Provides the Output interface and device backends
// Package output opens audio devices that pull samples from a render callback.
//
// Every backend calls the RenderFunc from its own audio thread whenever the
// device needs another block; the block size is chosen by the device. The
// render function must not block. Failures after Open (a lost device, a
// stalled stream) are reported once through the FailFunc given to Open.
//
// Backends:
//   - oto: default, cross-platform (ebitengine/oto)
//   - malgo: miniaudio via malgo
//   - portaudio: PortAudio (build with -tags portaudio)
//   - null: no device, paced by a timer (headless and tests)
//
// Example:
//
//	out, err := output.New("oto", output.Options{})
//	err = out.Open(audio.Format{SampleRate: 44100, Channels: 1}, voiceRender, onFailure)
//	defer out.Close()
package output
