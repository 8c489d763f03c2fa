//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a PortAudio callback stream
package output

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

func init() {
	register("portaudio", NewPortAudio)
}

// portAudioStallTimeout is how long a started stream may go without a
// callback before it is reported as failed
const portAudioStallTimeout = 2 * time.Second

// PortAudio output implementation
type PortAudio struct {
	opts     Options
	mu       sync.Mutex
	stream   *portaudio.Stream
	watcher  *watcher
	lastCall atomic.Int64 // unix nanos of the latest callback
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(opts Options) Output {
	return &PortAudio{opts: opts}
}

// Name returns the backend name
func (p *PortAudio) Name() string { return "portaudio" }

// Open initializes PortAudio and starts a callback stream. A stream that
// stops calling back is reported to fail.
func (p *PortAudio) Open(format audio.Format, render RenderFunc, fail FailFunc) error {
	if err := format.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("portaudio output already open")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	framesPerBuffer := portaudio.FramesPerBufferUnspecified
	if p.opts.Buffer > 0 {
		framesPerBuffer = format.FramesFor(p.opts.Buffer)
	}

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), framesPerBuffer,
		func(out []float32) {
			p.lastCall.Store(time.Now().UnixNano())
			render(out)
		})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.lastCall.Store(time.Now().UnixNano())
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	p.watcher = startWatcher(portAudioStallTimeout/4, stallCheck(&p.lastCall, portAudioStallTimeout), newReporter(fail))
	return nil
}

// Close stops the stream and terminates PortAudio
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	p.watcher.Stop()
	p.watcher = nil

	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	p.stream = nil
	termErr := portaudio.Terminate()

	for _, err := range []error{stopErr, closeErr, termErr} {
		if err != nil {
			return fmt.Errorf("failed to close portaudio output: %w", err)
		}
	}
	return nil
}
