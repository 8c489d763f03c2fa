// ABOUTME: Offline and informational commands
// ABOUTME: render, devices, discover, init-config and version
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/internal/cli"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/config"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/discovery"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/version"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/encode"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/output"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/fan"
)

// RenderCmd writes the fan tone for a synthetic load to a WAV file
type RenderCmd struct {
	Output   string        `arg:"" help:"WAV file to write." type:"path"`
	Duration time.Duration `help:"Length of the render." default:"10s"`
	Load     float64       `help:"Constant CPU load in percent." default:"50"`
	Sweep    time.Duration `help:"Sweep the load 0-100-0% over this period instead of a constant load."`
	BitDepth int           `help:"WAV bit depth." name:"bit-depth" default:"16" enum:"16,24"`
	Block    int           `help:"Render block size in frames." default:"512"`
}

// Run executes the command
func (c *RenderCmd) Run(g *Globals) error {
	settings, cfgErr := config.Load(g.Config, g.EnvFile)
	if cfgErr != nil && !errors.Is(cfgErr, fs.ErrNotExist) {
		cli.PrintWarning(fmt.Sprintf("settings problems, defaults used: %v", cfgErr))
	}

	curve := fan.ConstantLoad(c.Load)
	if c.Sweep > 0 {
		curve = fan.SweepLoad(c.Sweep)
	}

	f, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.Output, err)
	}
	defer f.Close()

	enc, err := encode.NewWAV(f, settings.Range.Format(), c.BitDepth)
	if err != nil {
		return err
	}

	started := time.Now()
	stats, err := fan.RenderOffline(enc, fan.RenderOptions{
		Range:           settings.Range,
		TransitionSpeed: settings.TransitionSpeed,
		Duration:        c.Duration,
		BlockFrames:     c.Block,
		Load:            curve,
	})
	if err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", c.Output, err)
	}

	fmt.Fprint(cli.Out, cli.RenderSummary(c.Output, stats.Frames, settings.Range.SampleRate,
		stats.Peak, stats.MaxStep, time.Since(started)))
	return nil
}

// DevicesCmd lists the compiled-in output backends
type DevicesCmd struct{}

// Run executes the command
func (c *DevicesCmd) Run(g *Globals) error {
	cli.PrintSection("Audio backends")
	for _, name := range output.Backends() {
		note := "available"
		if name == output.DefaultBackend {
			note = "default"
		}
		cli.PrintInfo(name, note)
	}
	return nil
}

// DiscoverCmd browses for advertised instances
type DiscoverCmd struct {
	Timeout time.Duration `help:"How long to listen for responses." default:"3s"`
}

// Run executes the command
func (c *DiscoverCmd) Run(g *Globals) error {
	cli.PrintSection("Discovering " + discovery.ServiceType)

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout+time.Second)
	defer cancel()

	instances, err := discovery.Browse(ctx, c.Timeout)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		cli.PrintWarning("no instances found")
		return nil
	}
	for _, inst := range instances {
		cli.PrintSuccess(fmt.Sprintf("%s  %s  v%s", inst.Name, inst.Addr(), inst.Version))
	}
	return nil
}

// InitConfigCmd writes a default settings file
type InitConfigCmd struct {
	Force bool `help:"Overwrite an existing file."`
}

// Run executes the command
func (c *InitConfigCmd) Run(g *Globals) error {
	if _, err := os.Stat(g.Config); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", g.Config)
	}
	if err := config.Save(g.Config, config.Default()); err != nil {
		return err
	}
	cli.PrintSuccess("wrote " + g.Config)
	return nil
}

// VersionCmd prints version information
type VersionCmd struct{}

// Run executes the command
func (c *VersionCmd) Run(g *Globals) error {
	cli.PrintVersion(version.Product, version.Version)
	return nil
}
