// ABOUTME: System load sampling for the fan simulator
// ABOUTME: Periodic CPU sampling mapped onto frequency and volume targets
// Package load samples system load and maps it onto audio targets.
//
// A Sampler reads a Source on a fixed interval, converts the load percent to a
// fraction and linearly maps it onto the configured frequency and volume
// ranges. Results are written to a TargetSetter only while automatic mode is
// active, and every sample is pushed to subscribers without blocking.
//
// Example:
//
//	sampler := load.NewSampler(load.SamplerConfig{
//	    Source:   load.NewCPUSource(),
//	    Mapping:  load.Mapping{Frequency: load.Range{Min: 1400, Max: 2500}, Volume: load.Range{Min: 0.01, Max: 0.5}},
//	    Interval: 100 * time.Millisecond,
//	    Targets:  params,
//	})
//	go sampler.Run(ctx)
package load
