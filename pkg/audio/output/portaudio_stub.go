//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
)

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(Options) Output {
	return &PortAudio{}
}

// Name returns the backend name
func (p *PortAudio) Name() string { return "portaudio" }

// Open always fails
func (p *PortAudio) Open(audio.Format, RenderFunc, FailFunc) error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Close is a no-op
func (p *PortAudio) Close() error {
	return nil
}
