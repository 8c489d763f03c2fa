// ABOUTME: Fan engine lifecycle and public API
// ABOUTME: Owns shared params, the load sampler and the output stream
package fan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/internal/metrics"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/output"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/synth"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/load"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StreamState is the output stream lifecycle state
type StreamState int

const (
	Stopped StreamState = iota
	Running
)

func (s StreamState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// State is a point-in-time view of the engine
type State struct {
	Frequency       float64
	Volume          float64
	TargetFrequency float64
	TargetVolume    float64
	CPULoad         float64
	Stream          StreamState
	Running         bool
	Manual          bool
	Session         string
	Backend         string
}

// renderer fills a block of samples; synth.Voice in production
type renderer interface {
	Render(out []float32) error
}

// Engine drives the fan tone from CPU load
type Engine struct {
	config  Config
	logger  *zap.Logger
	params  *synth.Params
	sampler *load.Sampler
	out     output.Output

	newRenderer func() renderer

	manual   atomic.Bool
	manualAt atomic.Int64 // unix nanos of the last manual adjustment

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex // lifecycle
	running bool
	closed  bool
	session string
	done    chan struct{} // closed when the current session ends
	err     error
}

// NewEngine creates an engine and starts load sampling. The output stream
// stays stopped until Start.
func NewEngine(config Config) (*Engine, error) {
	if config.Range == (RangeConfig{}) {
		config.Range = DefaultRangeConfig()
	}
	if err := config.Range.Validate(); err != nil {
		return nil, err
	}
	if config.TransitionSpeed <= 0 || config.TransitionSpeed > 1 {
		config.TransitionSpeed = synth.DefaultTransitionSpeed
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	out := config.Output
	if out == nil {
		var err error
		out, err = output.New(config.Backend, output.Options{Buffer: config.Buffer})
		if err != nil {
			return nil, &ConfigError{Field: "backend", Value: config.Backend, Err: err}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		config: config,
		logger: config.Logger.Named("fan"),
		params: synth.NewParams(config.Range.MinFrequency, config.Range.MinVolume),
		out:    out,
		ctx:    ctx,
		cancel: cancel,
	}
	e.newRenderer = func() renderer {
		return synth.NewVoice(e.params, config.Range.SampleRate, config.TransitionSpeed)
	}

	e.sampler = load.NewSampler(load.SamplerConfig{
		Source:    config.Source,
		Mapping:   config.Range.Mapping(),
		Interval:  config.Range.UpdateInterval,
		Targets:   e.params,
		Automatic: e.automatic,
		OnError: func(error) {
			metrics.SampleErrorsTotal.Inc()
		},
		Logger: config.Logger,
	})

	samples, unsubscribe := e.sampler.Subscribe()
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.sampler.Run(ctx)
		unsubscribe()
	}()
	go func() {
		defer e.wg.Done()
		e.observe(samples)
	}()

	e.logger.Info("engine created",
		zap.String("backend", out.Name()),
		zap.Int("sample_rate", config.Range.SampleRate),
		zap.Float64("min_freq", config.Range.MinFrequency),
		zap.Float64("max_freq", config.Range.MaxFrequency),
		zap.Float64("transition_speed", config.TransitionSpeed))

	return e, nil
}

// observe mirrors samples into metrics
func (e *Engine) observe(samples <-chan load.Sample) {
	for range samples {
		s := e.params.Snapshot()
		metrics.LoadSamplesTotal.Inc()
		metrics.CPUPercent.Set(e.sampler.Last())
		metrics.Frequency.Set(s.Frequency)
		metrics.Volume.Set(s.Volume)
		metrics.Manual.Set(metrics.Bool(e.manual.Load()))
	}
}

// Start opens the output stream. Starting a running engine is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.running {
		return nil
	}

	session := uuid.New().String()
	faults := make(chan error, 1)
	render := e.renderFunc(e.newRenderer(), faults)
	backend := e.out.Name()
	deviceFailed := func(err error) {
		reportFault(faults, fmt.Errorf("%s output: %w", backend, err))
	}

	if err := e.out.Open(e.config.Range.Format(), render, deviceFailed); err != nil {
		metrics.StreamStartsTotal.WithLabelValues("failed").Inc()
		e.logger.Error("failed to open audio device", zap.String("backend", e.out.Name()), zap.Error(err))
		return &DeviceError{Backend: e.out.Name(), Err: err}
	}

	done := make(chan struct{})
	e.running = true
	e.session = session
	e.done = done
	e.err = nil

	metrics.StreamStartsTotal.WithLabelValues("ok").Inc()
	metrics.Running.Set(1)
	e.logger.Info("stream started", zap.String("session", session), zap.String("backend", e.out.Name()))

	go e.supervise(session, faults, done)
	return nil
}

// Stop halts the stream and releases the device. Safe before Start and when
// already stopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	err := e.stopLocked()
	e.logger.Info("stream stopped", zap.String("session", e.session))
	return err
}

// stopLocked closes the current session (must hold e.mu)
func (e *Engine) stopLocked() error {
	close(e.done)
	e.running = false
	metrics.Running.Set(0)

	if err := e.out.Close(); err != nil {
		return &DeviceError{Backend: e.out.Name(), Err: err}
	}
	return nil
}

// reportFault hands the first failure of a session to its supervisor without
// blocking
func reportFault(faults chan<- error, err error) {
	select {
	case faults <- err:
	default:
	}
}

// supervise stops the session when its render callback or output device
// reports a failure
func (e *Engine) supervise(session string, faults <-chan error, done <-chan struct{}) {
	var cause error
	select {
	case cause = <-faults:
	case <-done:
		return
	}

	e.mu.Lock()
	if !e.running || e.session != session {
		e.mu.Unlock()
		return
	}
	if err := e.stopLocked(); err != nil {
		e.logger.Warn("error closing failed stream", zap.Error(err))
	}
	streamErr := &StreamError{Session: session, Err: cause}
	e.err = streamErr
	e.mu.Unlock()

	metrics.StreamErrorsTotal.Inc()
	e.logger.Error("audio stream failed", zap.String("session", session), zap.Error(cause))

	if e.config.OnError != nil {
		e.config.OnError(streamErr)
	}
}

// renderFunc wraps r for the device thread. A failure or panic silences the
// block, latches the session into silence and reports once to faults.
func (e *Engine) renderFunc(r renderer, faults chan<- error) output.RenderFunc {
	var failed atomic.Bool

	fail := func(out []float32, err error) {
		for i := range out {
			out[i] = 0
		}
		if failed.CompareAndSwap(false, true) {
			reportFault(faults, err)
		}
	}

	return func(out []float32) {
		if failed.Load() {
			for i := range out {
				out[i] = 0
			}
			return
		}

		defer func() {
			if p := recover(); p != nil {
				fail(out, fmt.Errorf("render panic: %v", p))
			}
		}()

		if err := r.Render(out); err != nil {
			fail(out, err)
			return
		}

		metrics.RenderCallbacksTotal.Inc()
		metrics.RenderFramesTotal.Add(float64(len(out)))
		metrics.RenderBlockFrames.Observe(float64(len(out)))
	}
}

// SetManualFrequency jumps current and target frequency to hz and enters
// manual mode
func (e *Engine) SetManualFrequency(hz float64) error {
	if err := e.params.SetFrequency(hz); err != nil {
		return err
	}
	e.enterManual()
	return nil
}

// SetManualVolume jumps current and target volume to v and enters manual mode
func (e *Engine) SetManualVolume(v float64) error {
	if err := e.params.SetVolume(v); err != nil {
		return err
	}
	e.enterManual()
	return nil
}

func (e *Engine) enterManual() {
	e.manualAt.Store(time.Now().UnixNano())
	if e.manual.CompareAndSwap(false, true) {
		metrics.Manual.Set(1)
		e.logger.Info("manual override engaged")
	}
}

// ResumeAutomatic hands the targets back to the load sampler
func (e *Engine) ResumeAutomatic() {
	if e.manual.CompareAndSwap(true, false) {
		metrics.Manual.Set(0)
		e.logger.Info("automatic mode resumed")
	}
}

// Manual reports whether a manual override is holding the targets
func (e *Engine) Manual() bool {
	if !e.manual.Load() {
		return false
	}
	hold := e.config.ManualHold
	if hold <= 0 {
		return true
	}
	if time.Since(time.Unix(0, e.manualAt.Load())) < hold {
		return true
	}
	if e.manual.CompareAndSwap(true, false) {
		metrics.Manual.Set(0)
		e.logger.Info("manual override expired", zap.Duration("hold", hold))
	}
	return false
}

func (e *Engine) automatic() bool {
	return !e.Manual()
}

// State returns a snapshot of the engine
func (e *Engine) State() State {
	s := e.params.Snapshot()

	e.mu.Lock()
	running := e.running
	session := e.session
	e.mu.Unlock()

	stream := Stopped
	if running {
		stream = Running
	}

	return State{
		Frequency:       s.Frequency,
		Volume:          s.Volume,
		TargetFrequency: s.TargetFrequency,
		TargetVolume:    s.TargetVolume,
		CPULoad:         e.sampler.Last(),
		Stream:          stream,
		Running:         running,
		Manual:          e.Manual(),
		Session:         session,
		Backend:         e.out.Name(),
	}
}

// CPULoad returns the last sampled CPU load in percent
func (e *Engine) CPULoad() float64 {
	return e.sampler.Last()
}

// Range returns the configured ranges
func (e *Engine) Range() RangeConfig {
	return e.config.Range
}

// Err returns the StreamError that stopped the last session, if any
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Subscribe returns a channel receiving every load sample. Slow subscribers
// only see the latest sample. Call the returned func to unsubscribe.
func (e *Engine) Subscribe() (<-chan load.Sample, func()) {
	return e.sampler.Subscribe()
}

// Close stops the stream and the sampler. The engine cannot be restarted.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	var err error
	if e.running {
		err = e.stopLocked()
	}
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()

	e.logger.Info("engine closed")
	return err
}
