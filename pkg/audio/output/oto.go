// ABOUTME: Oto-based audio output implementation
// ABOUTME: Pull-model player reading float32 blocks from the render callback
package output

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

const bytesPerFloat32 = 4

// otoWatchInterval is how often a playing player is checked for errors
const otoWatchInterval = 250 * time.Millisecond

// oto allows one context per process, so it is shared by every Oto output
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

func sharedOtoContext(format audio.Format, opts Options) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != format {
			return nil, fmt.Errorf("oto context already initialized at %dHz/%dch, cannot switch to %dHz/%dch",
				otoFormat.SampleRate, otoFormat.Channels, format.SampleRate, format.Channels)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   opts.Buffer,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoFormat = format
	return ctx, nil
}

// suspendSharedContext pauses the shared context while no player is open
func suspendSharedContext() error {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx == nil {
		return nil
	}
	return otoCtx.Suspend()
}

// otoPlayerCheck reports an error once the player has failed
func otoPlayerCheck(player interface{ Err() error }) func() error {
	return func() error {
		if err := player.Err(); err != nil {
			return fmt.Errorf("oto player failed: %w", err)
		}
		return nil
	}
}

// Oto output implementation using the oto library
type Oto struct {
	opts   Options
	render atomic.Pointer[RenderFunc] // lock-free for Read
	buf    []float32                  // only touched from Read

	mu      sync.Mutex // setup/teardown only
	player  *oto.Player
	watcher *watcher
}

// NewOto creates a new Oto output
func NewOto(opts Options) Output {
	return &Oto{opts: opts}
}

// Name returns the backend name
func (o *Oto) Name() string { return "oto" }

// Open starts a player that pulls blocks from render. A player error after
// Open is reported to fail.
func (o *Oto) Open(format audio.Format, render RenderFunc, fail FailFunc) error {
	if err := format.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("oto output already open")
	}

	ctx, err := sharedOtoContext(format, o.opts)
	if err != nil {
		return err
	}

	o.render.Store(&render)
	o.buf = make([]float32, 2048)

	player := ctx.NewPlayer(o)
	if o.opts.Buffer > 0 {
		player.SetBufferSize(format.FramesFor(o.opts.Buffer) * format.Channels * bytesPerFloat32)
	}
	player.Play()
	if err := player.Err(); err != nil {
		o.render.Store(nil)
		_ = player.Close()
		_ = suspendSharedContext()
		return fmt.Errorf("oto player failed to start: %w", err)
	}

	o.player = player
	o.watcher = startWatcher(otoWatchInterval, otoPlayerCheck(player), newReporter(fail))
	return nil
}

// Read is called by oto's audio goroutine to fetch the next block
func (o *Oto) Read(p []byte) (int, error) {
	n := len(p) / bytesPerFloat32
	render := o.render.Load()
	if render == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	o.buf = scratch(o.buf, n)
	(*render)(o.buf)
	audio.PutFloat32LE(p, o.buf)

	// oto always asks for whole samples, but never leave garbage behind
	for i := n * bytesPerFloat32; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Close stops the player and suspends the shared context
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}

	o.watcher.Stop()
	o.watcher = nil

	o.render.Store(nil)
	err := o.player.Close()
	o.player = nil

	if suspendErr := suspendSharedContext(); suspendErr != nil && err == nil {
		err = suspendErr
	}

	if err != nil {
		return fmt.Errorf("failed to close oto output: %w", err)
	}
	return nil
}
