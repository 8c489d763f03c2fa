// ABOUTME: PCM WAV encoder
// ABOUTME: Quantizes float32 samples to 16 or 24-bit PCM inside a WAV container
package encode

import (
	"fmt"
	"io"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

// WAVEncoder writes PCM WAV
type WAVEncoder struct {
	enc      *wav.Encoder
	bitDepth int
	buf      *goaudio.IntBuffer
	frames   int
	channels int
	closed   bool
}

// NewWAV creates a WAV encoder writing to w
func NewWAV(w io.WriteSeeker, format audio.Format, bitDepth int) (*WAVEncoder, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}

	return &WAVEncoder{
		enc:      wav.NewEncoder(w, format.SampleRate, bitDepth, format.Channels, wavFormatPCM),
		bitDepth: bitDepth,
		channels: format.Channels,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: format.Channels,
				SampleRate:  format.SampleRate,
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Encode quantizes and writes samples
func (e *WAVEncoder) Encode(samples []float32) error {
	if e.closed {
		return fmt.Errorf("wav encoder closed")
	}
	if len(samples)%e.channels != 0 {
		return fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), e.channels)
	}

	if cap(e.buf.Data) < len(samples) {
		e.buf.Data = make([]int, len(samples))
	}
	e.buf.Data = e.buf.Data[:len(samples)]
	for i, s := range samples {
		e.buf.Data[i] = audio.FloatToPCM(s, e.bitDepth)
	}

	if err := e.enc.Write(e.buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	e.frames += len(samples) / e.channels
	return nil
}

// Frames returns the number of frames written so far
func (e *WAVEncoder) Frames() int {
	return e.frames
}

// Close finalizes the RIFF headers. It does not close the underlying writer.
func (e *WAVEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}
