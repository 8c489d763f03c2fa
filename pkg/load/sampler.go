// ABOUTME: Periodic load sampler
// ABOUTME: Maps samples to audio targets and pushes them to subscribers
package load

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultInterval is the sampling period
	DefaultInterval = 100 * time.Millisecond
)

// TargetSetter receives the mapped targets and rejects unusable ones
type TargetSetter interface {
	SetTargets(frequency, volume float64) error
}

// Sample is one load measurement and the targets derived from it
type Sample struct {
	Time      time.Time
	Percent   float64
	Frequency float64
	Volume    float64
	// Applied is false when a manual override kept the targets untouched
	Applied bool
}

// SamplerConfig configures a Sampler
type SamplerConfig struct {
	Source   Source
	Mapping  Mapping
	Interval time.Duration
	Targets  TargetSetter

	// Automatic reports whether targets may be written. Nil means always.
	Automatic func() bool

	// OnError is called for every failed sample
	OnError func(error)

	Logger *zap.Logger
}

// Sampler periodically reads a Source and updates targets
type Sampler struct {
	config SamplerConfig
	logger *zap.Logger

	last     atomic.Uint64 // float64 bits of the last good percent
	failures int

	subsMu sync.Mutex
	subs   map[chan Sample]struct{}
}

// NewSampler creates a sampler
func NewSampler(config SamplerConfig) *Sampler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Source == nil {
		config.Source = NewCPUSource()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sampler{
		config: config,
		logger: logger.Named("sampler"),
		subs:   make(map[chan Sample]struct{}),
	}
}

// Run samples on every tick until ctx is cancelled
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Debug("sampler started", zap.Duration("interval", s.config.Interval))

	s.SampleOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.SampleOnce(ctx)
		case <-ctx.Done():
			s.logger.Debug("sampler stopped")
			return
		}
	}
}

// SampleOnce takes one sample. On failure the previous targets are held and
// false is returned.
func (s *Sampler) SampleOnce(ctx context.Context) (Sample, bool) {
	percent, err := s.config.Source.Percent(ctx)
	if err == nil && (math.IsNaN(percent) || math.IsInf(percent, 0)) {
		err = &MetricSampleError{Err: errors.New("non-finite load value")}
	}
	if err != nil {
		if ctx.Err() != nil {
			return Sample{}, false
		}
		s.recordFailure(err)
		return Sample{}, false
	}

	if s.failures > 0 {
		s.logger.Info("load sampling recovered", zap.Int("failed_samples", s.failures))
		s.failures = 0
	}

	frequency, volume := s.config.Mapping.Map(percent)
	sample := Sample{
		Time:      time.Now(),
		Percent:   percent,
		Frequency: frequency,
		Volume:    volume,
	}

	if s.config.Automatic == nil || s.config.Automatic() {
		if s.config.Targets != nil {
			if err := s.config.Targets.SetTargets(frequency, volume); err != nil {
				s.recordFailure(err)
				return Sample{}, false
			}
		}
		sample.Applied = true
	}

	s.last.Store(math.Float64bits(percent))
	s.publish(sample)
	return sample, true
}

// Last returns the last successfully sampled load percent
func (s *Sampler) Last() float64 {
	return math.Float64frombits(s.last.Load())
}

// Subscribe returns a channel receiving every sample. Slow subscribers only
// ever see the most recent sample. Call the returned func to unsubscribe.
func (s *Sampler) Subscribe() (<-chan Sample, func()) {
	ch := make(chan Sample, 1)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, ch)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

func (s *Sampler) publish(sample Sample) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- sample:
			continue
		default:
		}
		// Replace the stale sample
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- sample:
		default:
		}
	}
}

func (s *Sampler) recordFailure(err error) {
	var sampleErr *MetricSampleError
	if !errors.As(err, &sampleErr) {
		err = &MetricSampleError{Err: err}
	}

	s.failures++
	// Log the first failure of a streak and then every 50th
	if s.failures == 1 || s.failures%50 == 0 {
		s.logger.Warn("load sampling failed, holding previous targets",
			zap.Error(err), zap.Int("consecutive", s.failures))
	}

	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
