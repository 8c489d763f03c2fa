// ABOUTME: Fan simulator engine package
// ABOUTME: Ties load sampling, tone synthesis and audio output together
// Package fan turns CPU load into a continuously varying sine tone.
//
// An Engine owns three things: the shared synth.Params, a load.Sampler that
// writes target frequency and volume from the CPU load, and an output stream
// whose render callback smooths toward those targets and synthesizes the
// tone. The sampler and the render callback run on independent schedules and
// only meet in the shared parameters.
//
// Example:
//
//	engine, err := fan.NewEngine(fan.Config{Range: fan.DefaultRangeConfig()})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	if err := engine.Start(); err != nil {
//		log.Fatal(err)
//	}
//	engine.SetManualFrequency(2000) // hold 2kHz until ResumeAutomatic
package fan
