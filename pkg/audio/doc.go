// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the output Format and float/PCM sample conversion
// Package audio provides the fundamental audio types shared by the synthesis,
// output and encode packages.
//
// The fan simulator renders mono float32 samples in [-1, 1]. This package
// describes the stream format those samples are played at and converts them to
// the integer and byte layouts the devices and file writers want:
//   - Format: sample rate and channel count of an output stream
//   - FloatToInt16 / FloatToPCM: clipping conversions to integer PCM
//   - PutFloat32LE: packs float32 samples for byte-oriented device APIs
//
// Example:
//
//	format := audio.Format{SampleRate: 44100, Channels: 1}
//	frames := format.FramesFor(10 * time.Millisecond) // 441
package audio
