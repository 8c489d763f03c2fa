// ABOUTME: Logger construction for the fan simulator
// ABOUTME: JSON to a rotated log file, plus console output when no TUI is shown
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger
type Options struct {
	// File is the log file path; empty disables file logging
	File string

	// MaxSizeMB rotates the file at this size (default 1)
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default 3)
	MaxBackups int

	// Console also writes human-readable logs to Stdout. The TUI owns the
	// terminal, so it logs to the file only.
	Console bool

	// Stdout overrides os.Stdout for the console core
	Stdout io.Writer

	Debug bool
}

// New builds a logger. The returned func flushes and closes the file.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}

	var cores []zapcore.Core
	var closers []io.Closer

	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 1
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 3
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		closers = append(closers, rotator)

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(rotator),
			level,
		))
	}

	if opts.Console {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(out),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		_ = logger.Sync()
		for _, c := range closers {
			_ = c.Close()
		}
	}
	return logger, cleanup, nil
}
