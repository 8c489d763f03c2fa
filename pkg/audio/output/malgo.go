// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a float32 data callback
package output

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
	"github.com/gen2brain/malgo"
)

func init() {
	register("malgo", NewMalgo)
}

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	opts     Options
	channels int
	render   atomic.Pointer[RenderFunc]
	buf      []float32 // only touched from the data callback
	closing  atomic.Bool

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
}

// NewMalgo creates a new Malgo output
func NewMalgo(opts Options) Output {
	return &Malgo{opts: opts}
}

// Name returns the backend name
func (m *Malgo) Name() string { return "malgo" }

// Open initializes and starts the playback device. A device stop that Close
// did not ask for is reported to fail.
func (m *Malgo) Open(format audio.Format, render RenderFunc, fail FailFunc) error {
	if err := format.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("malgo output already open")
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if m.opts.Buffer > 0 {
		deviceConfig.PeriodSizeInMilliseconds = uint32(m.opts.Buffer.Milliseconds())
	}

	m.channels = format.Channels
	m.buf = make([]float32, 2048)
	m.render.Store(&render)
	m.closing.Store(false)

	rep := newReporter(fail)
	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.dataCallback,
		Stop: m.stopCallback(rep),
	})
	if err != nil {
		m.render.Store(nil)
		m.releaseContext()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		m.closing.Store(true)
		device.Uninit()
		m.render.Store(nil)
		m.releaseContext()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	return nil
}

// dataCallback is called by malgo to fill the output buffer
func (m *Malgo) dataCallback(pOutput, _ []byte, frameCount uint32) {
	n := int(frameCount) * m.channels
	render := m.render.Load()
	if render == nil {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	m.buf = scratch(m.buf, n)
	(*render)(m.buf)
	audio.PutFloat32LE(pOutput, m.buf)
}

// stopCallback reports device stops that Close did not request
func (m *Malgo) stopCallback(rep *reporter) malgo.StopProc {
	return func() {
		if m.closing.Load() {
			return
		}
		rep.report(errors.New("malgo playback device stopped unexpectedly"))
	}
}

// Close stops the device and releases the context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closing.Store(true)
	m.render.Store(nil)

	var err error
	if m.device != nil {
		err = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	m.releaseContext()

	if err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}
	return nil
}

// releaseContext frees the malgo context (must hold m.mu)
func (m *Malgo) releaseContext() {
	if m.malgoCtx == nil {
		return
	}
	_ = m.malgoCtx.Uninit()
	m.malgoCtx.Free()
	m.malgoCtx = nil
}
