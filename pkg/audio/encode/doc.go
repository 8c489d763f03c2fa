// ABOUTME: Audio encoder package
// ABOUTME: Writes rendered float32 audio to PCM WAV
// Package encode writes rendered float32 blocks to disk.
//
// The only container is RIFF/WAVE with 16 or 24-bit integer PCM, written through
// go-audio/wav. Samples are clipped to [-1, 1] before quantization.
//
// Example:
//
//	f, _ := os.Create("tone.wav")
//	enc, err := encode.NewWAV(f, audio.Format{SampleRate: 44100, Channels: 1}, 16)
//	err = enc.Encode(block)
//	err = enc.Close()
package encode
