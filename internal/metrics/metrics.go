// ABOUTME: Prometheus metrics for the fan simulator
// ABOUTME: Package-level collectors registered on the default registry
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	CPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigour_cpu_percent",
		Help: "Last sampled CPU load in percent",
	})
	Frequency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigour_frequency_hz",
		Help: "Current smoothed tone frequency",
	})
	Volume = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigour_volume",
		Help: "Current smoothed tone volume (0-1)",
	})
	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigour_stream_running",
		Help: "1 while the output stream is running",
	})
	Manual = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigour_manual_mode",
		Help: "1 while a manual override is holding the targets",
	})
)

// Counters
var (
	RenderCallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigour_render_callbacks_total",
		Help: "Total render callbacks served",
	})
	RenderFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigour_render_frames_total",
		Help: "Total frames rendered",
	})
	LoadSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigour_load_samples_total",
		Help: "Total successful load samples",
	})
	SampleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigour_load_sample_errors_total",
		Help: "Total failed load samples",
	})
	StreamErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigour_stream_errors_total",
		Help: "Total output streams stopped by a runtime failure",
	})
	StreamStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigour_stream_starts_total",
		Help: "Stream start attempts by outcome",
	}, []string{"outcome"})
)

// Histograms
var (
	RenderBlockFrames = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vigour_render_block_frames",
		Help:    "Frames requested per render callback",
		Buckets: []float64{64, 128, 256, 512, 1024, 2048, 4096, 8192},
	})
)

// Bool converts a flag to a gauge value
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
