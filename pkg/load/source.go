// ABOUTME: Load sources for the sampler
// ABOUTME: CPU utilization via gopsutil plus fixed and function sources
package load

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Source reports system load as a percentage in [0, 100]
type Source interface {
	Percent(ctx context.Context) (float64, error)
}

// MetricSampleError reports a failed load query. The sampler holds the
// previous targets when it sees one.
type MetricSampleError struct {
	Err error
}

func (e *MetricSampleError) Error() string {
	return fmt.Sprintf("metric sample failed: %v", e.Err)
}

func (e *MetricSampleError) Unwrap() error {
	return e.Err
}

// CPUSource reports overall CPU utilization since the previous call
type CPUSource struct {
	mu sync.Mutex
}

// NewCPUSource creates a CPU utilization source
func NewCPUSource() *CPUSource {
	return &CPUSource{}
}

// Percent returns CPU utilization across all cores since the previous call.
// It does not block for a measurement window; the sampler interval is the
// window.
func (s *CPUSource) Percent(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, &MetricSampleError{Err: err}
	}
	if len(values) == 0 {
		return 0, &MetricSampleError{Err: errors.New("no cpu statistics reported")}
	}
	return values[0], nil
}

// FixedSource always reports the same load
type FixedSource float64

// Percent returns the fixed load
func (s FixedSource) Percent(context.Context) (float64, error) {
	return float64(s), nil
}

// SourceFunc adapts a function to a Source
type SourceFunc func(ctx context.Context) (float64, error)

// Percent calls f
func (f SourceFunc) Percent(ctx context.Context) (float64, error) {
	return f(ctx)
}
