// ABOUTME: Device-less audio output
// ABOUTME: Drives the render callback from a timer at real-time block cadence
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
)

// DefaultNullBuffer is the block duration of the null backend
const DefaultNullBuffer = 10 * time.Millisecond

// Null renders blocks in real time and discards them (or hands them to a tap)
type Null struct {
	opts Options

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewNull creates a null output
func NewNull(opts Options) Output {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultNullBuffer
	}
	return &Null{opts: opts}
}

// Name returns the backend name
func (n *Null) Name() string { return "null" }

// Open starts the render loop. The null backend has no device that can fail,
// so fail is never called.
func (n *Null) Open(format audio.Format, render RenderFunc, _ FailFunc) error {
	if err := format.Validate(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop != nil {
		return fmt.Errorf("null output already open")
	}

	frames := format.FramesFor(n.opts.Buffer)
	if frames < 1 {
		frames = 1
	}

	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.loop(make([]float32, frames*format.Channels), format.DurationOf(frames), render, n.stop, n.done)
	return nil
}

func (n *Null) loop(block []float32, period time.Duration, render RenderFunc, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			render(block)
			if n.opts.Tap != nil {
				n.opts.Tap(block)
			}
		case <-stop:
			return
		}
	}
}

// Close stops the render loop and waits for it to exit
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop == nil {
		return nil
	}
	close(n.stop)
	<-n.done
	n.stop = nil
	n.done = nil
	return nil
}
