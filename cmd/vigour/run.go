// ABOUTME: The run command
// ABOUTME: Wires config, logging, engine, TUI, diagnostics and mDNS together
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/internal/config"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/diag"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/discovery"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/logging"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/ui"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/version"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/fan"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// RunCmd plays the fan tone
type RunCmd struct {
	NoTUI   bool   `help:"Disable the TUI and stream logs instead." name:"no-tui"`
	Paused  bool   `help:"Start with the audio stream stopped."`
	Backend string `help:"Override the audio backend (oto, malgo, portaudio, null)."`
	Listen  string `help:"Serve diagnostics on this address (empty = off)." placeholder:"host:port"`
	MDNS    bool   `help:"Advertise the diagnostics endpoint via mDNS." name:"mdns"`
	Name    string `help:"mDNS instance name (default: hostname)."`
}

// Run executes the command
func (c *RunCmd) Run(g *Globals) error {
	settings, cfgErr := config.Load(g.Config, g.EnvFile)
	if c.Backend != "" {
		settings.Backend = c.Backend
	}

	// The TUI owns the terminal, so logs only go to the file
	useTUI := !c.NoTUI && !settings.HideOnStartup

	logger, cleanup, err := logging.New(logging.Options{
		File:    g.LogFile,
		Console: !useTUI,
		Debug:   g.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	logger.Info("starting", zap.String("version", version.Version), zap.Bool("tui", useTUI))
	if cfgErr != nil {
		logger.Warn("settings problems, defaults used where needed",
			zap.String("file", g.Config), zap.Error(cfgErr))
	}

	var program *tea.Program
	send := func(msg ui.StatusMsg) {
		if program != nil {
			program.Send(msg)
		}
	}

	engineConfig := settings.EngineConfig(logger)
	engine, err := fan.NewEngine(engineConfig)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("error closing engine", zap.Error(err))
		}
	}()

	if !c.Paused {
		if err := engine.Start(); err != nil {
			// The TUI can retry with space; without it there is nothing to do
			if !useTUI {
				return err
			}
			logger.Error("audio did not start", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.Listen != "" {
		srv := diag.New(diag.Config{Addr: c.Listen, Logger: logger}, engine)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("diagnostics shutdown error", zap.Error(err))
			}
		}()

		if c.MDNS {
			mgr := discovery.NewManager(discovery.Config{
				InstanceName: instanceName(c.Name),
				Port:         srv.Addr().(*net.TCPAddr).Port,
				Version:      version.Version,
				Logger:       logger,
			})
			if err := mgr.Advertise(); err != nil {
				logger.Warn("mDNS advertisement failed", zap.Error(err))
			} else {
				defer mgr.Stop()
			}
		}
	}

	controls := ui.NewControls()
	tuiDone := make(chan struct{})
	if useTUI {
		r := engine.Range()
		program = ui.NewProgram(ui.Config{
			Title:        version.String(),
			Backend:      engine.State().Backend,
			MinFrequency: r.MinFrequency,
			MaxFrequency: r.MaxFrequency,
			MinVolume:    r.MinVolume,
			MaxVolume:    r.MaxVolume,
		}, controls)

		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				logger.Error("TUI failed", zap.Error(err))
			}
		}()
		go statusLoop(ctx, engine, send)
	} else {
		go logLoop(ctx, engine, logger)
	}

	go handleControls(ctx, engine, controls, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-controls.Quit:
		logger.Info("quit requested from TUI")
	case <-tuiDone:
		logger.Info("TUI exited")
	case sig := <-sigChan:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	cancel()
	if program != nil {
		program.Quit()
		<-tuiDone
	}

	logger.Info("stopped")
	return nil
}

// handleControls applies TUI commands to the engine
func handleControls(ctx context.Context, engine *fan.Engine, controls *ui.Controls, logger *zap.Logger) {
	for {
		select {
		case <-controls.Toggle:
			var err error
			if engine.State().Running {
				err = engine.Stop()
			} else {
				err = engine.Start()
			}
			if err != nil {
				logger.Error("start/stop failed", zap.Error(err))
			}
		case f := <-controls.Frequency:
			if err := engine.SetManualFrequency(f); err != nil {
				logger.Warn("manual frequency rejected", zap.Float64("frequency", f), zap.Error(err))
			}
		case v := <-controls.Volume:
			if err := engine.SetManualVolume(v); err != nil {
				logger.Warn("manual volume rejected", zap.Float64("volume", v), zap.Error(err))
			}
		case <-controls.Auto:
			engine.ResumeAutomatic()
		case <-ctx.Done():
			return
		}
	}
}

// statusLoop pushes engine state to the TUI after every load sample, and
// between samples so the smoothed values keep moving on screen
func statusLoop(ctx context.Context, engine *fan.Engine, send func(ui.StatusMsg)) {
	samples, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case _, ok := <-samples:
			if !ok {
				return
			}
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		send(statusFromState(engine.State(), engine.Err()))
	}
}

// logLoop reports the engine state once per second in streaming mode
func logLoop(ctx context.Context, engine *fan.Engine, logger *zap.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := engine.State()
			logger.Info("status",
				zap.Float64("cpu", st.CPULoad),
				zap.Float64("frequency", st.Frequency),
				zap.Float64("volume", st.Volume),
				zap.Stringer("stream", st.Stream),
				zap.Bool("manual", st.Manual))
		case <-ctx.Done():
			return
		}
	}
}

func statusFromState(st fan.State, err error) ui.StatusMsg {
	msg := ui.StatusMsg{
		CPU:             st.CPULoad,
		Frequency:       st.Frequency,
		Volume:          st.Volume,
		TargetFrequency: st.TargetFrequency,
		TargetVolume:    st.TargetVolume,
		Running:         st.Running,
		Manual:          st.Manual,
	}
	var streamErr *fan.StreamError
	if errors.As(err, &streamErr) {
		msg.Err = streamErr.Err.Error()
	} else if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

func instanceName(name string) string {
	if name != "" {
		return name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return hostname + "-vigour"
}
