// ABOUTME: Error taxonomy for the fan engine
// ABOUTME: Config, device and stream failures as errors.As-able types
package fan

import (
	"errors"
	"fmt"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/load"
)

// ErrClosed is returned by operations on a closed Engine
var ErrClosed = errors.New("engine closed")

// MetricSampleError is a failed load query; see load.MetricSampleError
type MetricSampleError = load.MetricSampleError

// ConfigError reports a missing or malformed setting. Loaders recover by
// falling back to the default value.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DeviceError reports that no output device could be opened. The stream never
// started.
type DeviceError struct {
	Backend string
	Err     error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device (%s): %v", e.Backend, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// StreamError reports a runtime failure of a running stream. The stream has
// been stopped and is not restarted.
type StreamError struct {
	Session string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("audio stream %s failed: %v", e.Session, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
