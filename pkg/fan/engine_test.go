// ABOUTME: Tests for the fan engine lifecycle
// ABOUTME: Covers start/stop, manual override, stream failures and shutdown
package fan

import (
	"errors"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/internal/testutil"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/output"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/load"
)

// fakeOutput hands the render callback to the test instead of a device
type fakeOutput struct {
	mu      sync.Mutex
	render  output.RenderFunc
	fail    output.FailFunc
	format  audio.Format
	openErr error
	opens   int
	closes  int
}

func (f *fakeOutput) Open(format audio.Format, render output.RenderFunc, fail output.FailFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.render = render
	f.fail = fail
	f.format = format
	f.opens++
	return nil
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.render = nil
	f.fail = nil
	f.closes++
	return nil
}

func (f *fakeOutput) Name() string { return "fake" }

// pull renders one block, returning false when the output is closed
func (f *fakeOutput) pull(block []float32) bool {
	f.mu.Lock()
	render := f.render
	f.mu.Unlock()
	if render == nil {
		return false
	}
	render(block)
	return true
}

// deviceFailure reports err from another goroutine, the way a backend's
// device thread would
func (f *fakeOutput) deviceFailure(err error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		go fail(err)
	}
}

func (f *fakeOutput) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.closes
}

type failingRenderer struct {
	err   error
	panic bool
}

func (r failingRenderer) Render(out []float32) error {
	if r.panic {
		panic("boom")
	}
	return r.err
}

func testRange() RangeConfig {
	r := DefaultRangeConfig()
	r.UpdateInterval = 5 * time.Millisecond
	return r
}

func newTestEngine(t *testing.T, config Config) (*Engine, *fakeOutput) {
	t.Helper()
	fake, _ := config.Output.(*fakeOutput)
	if fake == nil {
		fake = &fakeOutput{}
		config.Output = fake
	}
	if config.Range == (RangeConfig{}) {
		config.Range = testRange()
	}
	if config.Source == nil {
		config.Source = load.FixedSource(50)
	}

	engine, err := NewEngine(config)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine, fake
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewEngineDefaults(t *testing.T) {
	engine, _ := newTestEngine(t, Config{})

	if engine.config.TransitionSpeed != 0.03 {
		t.Errorf("expected default transition speed 0.03, got %f", engine.config.TransitionSpeed)
	}

	state := engine.State()
	if state.Running {
		t.Error("expected engine to start stopped")
	}
	if state.Stream != Stopped {
		t.Errorf("expected stream state stopped, got %s", state.Stream)
	}
	if state.Frequency != DefaultMinFrequency {
		t.Errorf("expected initial frequency %f, got %f", DefaultMinFrequency, state.Frequency)
	}
	if state.Volume != DefaultMinVolume {
		t.Errorf("expected initial volume %f, got %f", DefaultMinVolume, state.Volume)
	}
	if state.Backend != "fake" {
		t.Errorf("expected backend fake, got %s", state.Backend)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		field  string
	}{
		{
			name:   "zero sample rate",
			config: Config{Range: RangeConfig{MinFrequency: 100, MaxFrequency: 200, MaxVolume: 1, UpdateInterval: time.Second}},
			field:  "sample_rate",
		},
		{
			name: "frequency above nyquist",
			config: Config{Range: RangeConfig{MinFrequency: 100, MaxFrequency: 30000, MaxVolume: 1,
				UpdateInterval: time.Second, SampleRate: 44100}},
			field: "max_freq",
		},
		{
			name: "volume above one",
			config: Config{Range: RangeConfig{MinFrequency: 100, MaxFrequency: 200, MaxVolume: 2,
				UpdateInterval: time.Second, SampleRate: 44100}},
			field: "max_volume",
		},
		{
			name:   "unknown backend",
			config: Config{Backend: "jack"},
			field:  "backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.config)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestSamplerDrivesTargets(t *testing.T) {
	engine, _ := newTestEngine(t, Config{})

	waitFor(t, "targets from 50% load", func() bool {
		return math.Abs(engine.State().TargetFrequency-1950) < 1e-9
	})

	state := engine.State()
	if math.Abs(state.TargetVolume-0.255) > 1e-9 {
		t.Errorf("expected target volume 0.255, got %f", state.TargetVolume)
	}
	if state.CPULoad != 50 {
		t.Errorf("expected cpu load 50, got %f", state.CPULoad)
	}
	if engine.CPULoad() != 50 {
		t.Errorf("expected CPULoad 50, got %f", engine.CPULoad())
	}
	// Nothing renders while stopped, so current has not moved
	if state.Frequency != DefaultMinFrequency {
		t.Errorf("expected current frequency to hold while stopped, got %f", state.Frequency)
	}
}

func TestStartRendersSmoothedTone(t *testing.T) {
	engine, fake := newTestEngine(t, Config{Source: load.FixedSource(100)})

	waitFor(t, "targets from 100% load", func() bool {
		return engine.State().TargetFrequency == DefaultMaxFrequency
	})

	if err := engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if fake.format != (audio.Format{SampleRate: 44100, Channels: 1}) {
		t.Errorf("expected mono 44.1kHz, got %+v", fake.format)
	}

	block := make([]float32, 256)
	if !fake.pull(block) {
		t.Fatal("expected output to be open")
	}

	state := engine.State()
	if math.Abs(state.Frequency-1433) > 1e-9 {
		t.Errorf("expected 1433 Hz after one callback, got %f", state.Frequency)
	}
	if !state.Running || state.Stream != Running {
		t.Error("expected engine running")
	}
	if state.Session == "" {
		t.Error("expected session id")
	}

	var nonZero bool
	for _, s := range block {
		if s != 0 {
			nonZero = true
		}
		if math.Abs(float64(s)) > DefaultMaxVolume+1e-6 {
			t.Fatalf("sample %f exceeds max volume", s)
		}
	}
	if !nonZero {
		t.Error("expected audible block")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	engine, fake := newTestEngine(t, Config{})

	for i := 0; i < 3; i++ {
		if err := engine.Start(); err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
	}
	if opens, _ := fake.counts(); opens != 1 {
		t.Errorf("expected 1 open, got %d", opens)
	}
}

func TestStopIsNoOpWhenStopped(t *testing.T) {
	engine, fake := newTestEngine(t, Config{})

	if err := engine.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := engine.Stop(); err != nil {
		t.Errorf("first Stop failed: %v", err)
	}
	if err := engine.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
	if _, closes := fake.counts(); closes != 1 {
		t.Errorf("expected 1 close, got %d", closes)
	}
	if engine.State().Running {
		t.Error("expected engine stopped")
	}
}

func TestStartStopStartNewSession(t *testing.T) {
	engine, _ := newTestEngine(t, Config{})

	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}
	first := engine.State().Session
	engine.Stop()
	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}
	if second := engine.State().Session; second == first {
		t.Error("expected a new session id after restart")
	}
}

func TestStartDeviceError(t *testing.T) {
	fake := &fakeOutput{openErr: errors.New("no default output device")}
	engine, _ := newTestEngine(t, Config{Output: fake})

	err := engine.Start()
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if devErr.Backend != "fake" {
		t.Errorf("expected backend fake, got %s", devErr.Backend)
	}
	if !errors.Is(err, fake.openErr) {
		t.Error("expected DeviceError to unwrap to the device error")
	}
	if engine.State().Running {
		t.Error("expected engine to stay stopped")
	}
}

func TestManualOverrideIsInstant(t *testing.T) {
	engine, _ := newTestEngine(t, Config{})

	if err := engine.SetManualFrequency(2000); err != nil {
		t.Fatalf("SetManualFrequency failed: %v", err)
	}
	if err := engine.SetManualVolume(0.3); err != nil {
		t.Fatalf("SetManualVolume failed: %v", err)
	}

	state := engine.State()
	if state.Frequency != 2000 || state.TargetFrequency != 2000 {
		t.Errorf("expected frequency and target 2000, got %f/%f", state.Frequency, state.TargetFrequency)
	}
	if state.Volume != 0.3 || state.TargetVolume != 0.3 {
		t.Errorf("expected volume and target 0.3, got %f/%f", state.Volume, state.TargetVolume)
	}
	if !state.Manual {
		t.Error("expected manual mode")
	}

	// Several sampler ticks must not overwrite the manual targets
	time.Sleep(30 * time.Millisecond)
	if got := engine.State().TargetFrequency; got != 2000 {
		t.Errorf("expected manual target to hold, got %f", got)
	}

	engine.ResumeAutomatic()
	if engine.Manual() {
		t.Error("expected automatic mode after ResumeAutomatic")
	}
	waitFor(t, "automatic targets", func() bool {
		return math.Abs(engine.State().TargetFrequency-1950) < 1e-9
	})
}

func TestManualRejectsInvalidValues(t *testing.T) {
	engine, _ := newTestEngine(t, Config{})

	if err := engine.SetManualFrequency(-5); err == nil {
		t.Error("expected error for negative frequency")
	}
	if err := engine.SetManualVolume(1.5); err == nil {
		t.Error("expected error for volume above 1")
	}
	if engine.Manual() {
		t.Error("rejected values must not enter manual mode")
	}
}

func TestManualHoldExpires(t *testing.T) {
	engine, _ := newTestEngine(t, Config{ManualHold: 20 * time.Millisecond})

	if err := engine.SetManualFrequency(1800); err != nil {
		t.Fatal(err)
	}
	if !engine.Manual() {
		t.Fatal("expected manual mode")
	}

	waitFor(t, "manual hold to expire", func() bool {
		return !engine.Manual()
	})
	waitFor(t, "automatic targets", func() bool {
		return math.Abs(engine.State().TargetFrequency-1950) < 1e-9
	})
}

func TestStreamErrorStopsStream(t *testing.T) {
	tests := []struct {
		name     string
		renderer failingRenderer
	}{
		{name: "render error", renderer: failingRenderer{err: errors.New("device underrun")}},
		{name: "render panic", renderer: failingRenderer{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reported atomic.Value
			engine, fake := newTestEngine(t, Config{
				OnError: func(err error) { reported.Store(err) },
			})
			engine.newRenderer = func() renderer { return tt.renderer }

			if err := engine.Start(); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			session := engine.State().Session

			block := []float32{1, 1, 1, 1}
			fake.pull(block)
			for i, s := range block {
				if s != 0 {
					t.Errorf("expected silence at %d, got %f", i, s)
				}
			}

			waitFor(t, "stream to stop", func() bool {
				return engine.Err() != nil
			})

			var streamErr *StreamError
			if !errors.As(engine.Err(), &streamErr) {
				t.Fatalf("expected StreamError, got %v", engine.Err())
			}
			if streamErr.Session != session {
				t.Errorf("expected session %s, got %s", session, streamErr.Session)
			}
			if engine.State().Running {
				t.Error("expected stream stopped after failure")
			}
			if _, closes := fake.counts(); closes != 1 {
				t.Errorf("expected output closed once, got %d", closes)
			}
			if reported.Load() == nil {
				t.Error("expected OnError to be called")
			}

			// A restart clears the error
			engine.newRenderer = func() renderer { return failingRenderer{} }
			if err := engine.Start(); err != nil {
				t.Fatalf("restart failed: %v", err)
			}
			if engine.Err() != nil {
				t.Errorf("expected error cleared on restart, got %v", engine.Err())
			}
		})
	}
}

func TestDeviceFailureStopsStream(t *testing.T) {
	var reported atomic.Value
	engine, fake := newTestEngine(t, Config{
		OnError: func(err error) { reported.Store(err) },
	})

	if err := engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	session := engine.State().Session

	// The device dies while the render callback keeps succeeding
	if !fake.pull(make([]float32, 64)) {
		t.Fatal("expected output to be open")
	}
	cause := errors.New("device unplugged")
	fake.deviceFailure(cause)

	waitFor(t, "stream to stop", func() bool {
		return engine.Err() != nil
	})

	var streamErr *StreamError
	if !errors.As(engine.Err(), &streamErr) {
		t.Fatalf("expected StreamError, got %v", engine.Err())
	}
	if streamErr.Session != session {
		t.Errorf("expected session %s, got %s", session, streamErr.Session)
	}
	if !errors.Is(engine.Err(), cause) {
		t.Errorf("expected error to wrap %v, got %v", cause, engine.Err())
	}
	var devErr *DeviceError
	if errors.As(engine.Err(), &devErr) {
		t.Error("expected a runtime failure, not a DeviceError")
	}

	state := engine.State()
	if state.Running {
		t.Error("expected stream stopped after device failure")
	}
	if state.Stream != Stopped {
		t.Errorf("expected stream state stopped, got %s", state.Stream)
	}
	if _, closes := fake.counts(); closes != 1 {
		t.Errorf("expected output closed once, got %d", closes)
	}
	if reported.Load() == nil {
		t.Error("expected OnError to be called")
	}
}

func TestDeviceFailureAfterStopIsIgnored(t *testing.T) {
	engine, fake := newTestEngine(t, Config{})

	if err := engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	fake.mu.Lock()
	staleFail := fake.fail
	fake.mu.Unlock()

	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	// A late report from the previous session must not stop the new one
	staleFail(errors.New("late failure"))
	time.Sleep(20 * time.Millisecond)

	if !engine.State().Running {
		t.Error("expected new session to keep running")
	}
	if engine.Err() != nil {
		t.Errorf("expected no error, got %v", engine.Err())
	}
}

func TestRenderLatchesSilenceAfterFailure(t *testing.T) {
	engine, _ := newTestEngine(t, Config{})

	faults := make(chan error, 1)
	calls := 0
	render := engine.renderFunc(rendererFunc(func(out []float32) error {
		calls++
		if calls == 1 {
			return errors.New("first block fails")
		}
		for i := range out {
			out[i] = 1
		}
		return nil
	}), faults)

	render(make([]float32, 4))
	block := []float32{1, 1}
	render(block)

	if calls != 1 {
		t.Errorf("expected renderer to be skipped after failure, got %d calls", calls)
	}
	if block[0] != 0 || block[1] != 0 {
		t.Error("expected silence after failure")
	}
	if len(faults) != 1 {
		t.Errorf("expected exactly one fault reported, got %d", len(faults))
	}
}

type rendererFunc func(out []float32) error

func (f rendererFunc) Render(out []float32) error { return f(out) }

func TestSubscribeReceivesSamples(t *testing.T) {
	engine, _ := newTestEngine(t, Config{Source: load.FixedSource(25)})

	samples, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	select {
	case s := <-samples:
		if s.Percent != 25 {
			t.Errorf("expected 25%%, got %f", s.Percent)
		}
		if !s.Applied {
			t.Error("expected sample to be applied in automatic mode")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}
}

func TestCloseStopsEverything(t *testing.T) {
	baseline := runtime.NumGoroutine()

	fake := &fakeOutput{}
	engine, err := NewEngine(Config{Range: testRange(), Output: fake, Source: load.FixedSource(10)})
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}

	if err := engine.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, closes := fake.counts(); closes != 1 {
		t.Errorf("expected output closed once, got %d", closes)
	}
	if err := engine.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	testutil.AssertNoGoroutineLeaks(t, baseline, 0)
}

func TestNullBackendEndToEnd(t *testing.T) {
	engine, err := NewEngine(Config{
		Range:   testRange(),
		Backend: "null",
		Source:  load.FixedSource(100),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	if err := engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "frequency to rise", func() bool {
		return engine.State().Frequency > 1500
	})

	if err := engine.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	frozen := engine.State().Frequency
	time.Sleep(30 * time.Millisecond)
	if got := engine.State().Frequency; got != frozen {
		t.Errorf("expected frequency frozen after Stop, got %f then %f", frozen, got)
	}
}
