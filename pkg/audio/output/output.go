// ABOUTME: Audio output interface definition
// ABOUTME: Common interface and factory for callback-driven playback backends
package output

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
)

// ErrNotOpen is returned when a backend is used before Open
var ErrNotOpen = errors.New("output not open")

// RenderFunc fills out with the next block of interleaved float32 samples
type RenderFunc func(out []float32)

// FailFunc receives a device failure that happens after a successful Open,
// such as the device disappearing or the stream stalling. It is called at
// most once per Open, never after Close returns, and must not block.
type FailFunc func(err error)

// Output represents an audio output device driven by a render callback
type Output interface {
	// Open starts the device; render is called from the device's audio thread.
	// fail may be nil.
	Open(format audio.Format, render RenderFunc, fail FailFunc) error

	// Close stops the device and releases it. Safe to call more than once.
	Close() error

	// Name returns the backend name
	Name() string
}

// Options tunes backend buffering
type Options struct {
	// Buffer is the requested device buffer duration (0 = backend default)
	Buffer time.Duration

	// Tap receives a copy of every block rendered by the null backend
	Tap func(block []float32)
}

// Factory creates an output backend
type Factory func(opts Options) Output

var backends = map[string]Factory{
	"oto":  NewOto,
	"null": NewNull,
}

func register(name string, f Factory) {
	backends[name] = f
}

// New creates the named backend
func New(name string, opts Options) (Output, error) {
	if name == "" {
		name = DefaultBackend
	}
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown audio backend %q (available: %v)", name, Backends())
	}
	return f(opts), nil
}

// DefaultBackend is used when no backend is named
const DefaultBackend = "oto"

// Backends returns the names of the compiled-in backends
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scratch returns buf resized to n, growing it only when needed
func scratch(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
