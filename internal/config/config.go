// ABOUTME: Settings loader for the fan simulator
// ABOUTME: Reads the INI document and applies VIGOUR_* environment overrides
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/output"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio/synth"
	"github.com/Vigour-Plus-Plus/vigour-go/pkg/fan"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"
)

const (
	// DefaultPath is the settings file read when none is given
	DefaultPath = "settings.ini"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "VIGOUR_"
)

// Settings is the full runtime configuration
type Settings struct {
	Range           fan.RangeConfig
	TransitionSpeed float64
	ManualHold      time.Duration
	Backend         string
	Buffer          time.Duration
	HideOnStartup   bool
}

// Default returns the stock settings
func Default() Settings {
	return Settings{
		Range:           fan.DefaultRangeConfig(),
		TransitionSpeed: synth.DefaultTransitionSpeed,
		Backend:         output.DefaultBackend,
	}
}

// EngineConfig converts settings into an engine configuration
func (s Settings) EngineConfig(logger *zap.Logger) fan.Config {
	return fan.Config{
		Range:           s.Range,
		TransitionSpeed: s.TransitionSpeed,
		ManualHold:      s.ManualHold,
		Backend:         s.Backend,
		Buffer:          s.Buffer,
		Logger:          logger,
	}
}

type field struct {
	section string
	key     string
	get     func(s *Settings) string
	set     func(s *Settings, raw string) error
}

var fields = []field{
	{"Settings", "min_freq",
		func(s *Settings) string { return formatFloat(s.Range.MinFrequency) },
		func(s *Settings, raw string) error { return parseFloat(raw, &s.Range.MinFrequency) }},
	{"Settings", "max_freq",
		func(s *Settings) string { return formatFloat(s.Range.MaxFrequency) },
		func(s *Settings, raw string) error { return parseFloat(raw, &s.Range.MaxFrequency) }},
	{"Settings", "min_volume",
		func(s *Settings) string { return formatFloat(s.Range.MinVolume) },
		func(s *Settings, raw string) error { return parseFloat(raw, &s.Range.MinVolume) }},
	{"Settings", "max_volume",
		func(s *Settings) string { return formatFloat(s.Range.MaxVolume) },
		func(s *Settings, raw string) error { return parseFloat(raw, &s.Range.MaxVolume) }},
	{"Settings", "update_interval",
		func(s *Settings) string { return formatMillis(s.Range.UpdateInterval) },
		func(s *Settings, raw string) error { return parseMillis(raw, &s.Range.UpdateInterval) }},
	{"Settings", "manual_hold",
		func(s *Settings) string { return formatMillis(s.ManualHold) },
		func(s *Settings, raw string) error { return parseMillis(raw, &s.ManualHold) }},
	{"Audio", "sample_rate",
		func(s *Settings) string { return strconv.Itoa(s.Range.SampleRate) },
		func(s *Settings, raw string) error { return parseInt(raw, &s.Range.SampleRate) }},
	{"Audio", "transition_speed",
		func(s *Settings) string { return formatFloat(s.TransitionSpeed) },
		func(s *Settings, raw string) error { return parseFloat(raw, &s.TransitionSpeed) }},
	{"Audio", "backend",
		func(s *Settings) string { return s.Backend },
		func(s *Settings, raw string) error { s.Backend = strings.ToLower(raw); return nil }},
	{"Audio", "buffer_ms",
		func(s *Settings) string { return formatMillis(s.Buffer) },
		func(s *Settings, raw string) error { return parseMillis(raw, &s.Buffer) }},
	{"Window", "hide_on_startup",
		func(s *Settings) string { return strconv.FormatBool(s.HideOnStartup) },
		func(s *Settings, raw string) error { return parseBool(raw, &s.HideOnStartup) }},
}

// Load reads settings from path, then applies environment overrides (after
// loading envFile, if it exists). Bad or missing values fall back to their
// defaults; every problem is returned joined in one error of *fan.ConfigError
// values, and the returned Settings are always usable.
func Load(path, envFile string) (Settings, error) {
	s := Default()
	var problems []error

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			problems = append(problems, &fan.ConfigError{Field: "env_file", Value: envFile, Err: err})
		}
	}

	doc, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		problems = append(problems, &fan.ConfigError{Field: "file", Value: path, Err: err})
		doc = ini.Empty()
	}

	for _, f := range fields {
		raw, ok := lookup(doc, f)
		if !ok {
			continue
		}
		before := s
		if err := f.set(&s, raw); err != nil {
			s = before
			problems = append(problems, &fan.ConfigError{Field: f.key, Value: raw, Err: err})
		}
	}

	problems = append(problems, s.normalize()...)
	return s, errors.Join(problems...)
}

// lookup returns the environment override or the INI value for f
func lookup(doc *ini.File, f field) (string, bool) {
	if v, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(f.key)); ok {
		return strings.TrimSpace(v), true
	}
	sec, err := doc.GetSection(f.section)
	if err != nil || !sec.HasKey(f.key) {
		return "", false
	}
	return strings.TrimSpace(sec.Key(f.key).String()), true
}

// rangeDefaults restores one RangeConfig field to its default
var rangeDefaults = map[string]func(r *fan.RangeConfig){
	"sample_rate":     func(r *fan.RangeConfig) { r.SampleRate = fan.DefaultSampleRate },
	"min_freq":        func(r *fan.RangeConfig) { r.MinFrequency = fan.DefaultMinFrequency },
	"max_freq":        func(r *fan.RangeConfig) { r.MaxFrequency = fan.DefaultMaxFrequency },
	"min_volume":      func(r *fan.RangeConfig) { r.MinVolume = fan.DefaultMinVolume },
	"max_volume":      func(r *fan.RangeConfig) { r.MaxVolume = fan.DefaultMaxVolume },
	"update_interval": func(r *fan.RangeConfig) { r.UpdateInterval = fan.DefaultUpdateInterval },
}

// normalize repairs out-of-range values and reports what it changed
func (s *Settings) normalize() []error {
	var problems []error
	defaults := Default()

	for _, v := range []struct {
		name  string
		value *float64
	}{{"min_volume", &s.Range.MinVolume}, {"max_volume", &s.Range.MaxVolume}} {
		clamped := *v.value
		if math.IsNaN(clamped) {
			// left for repairRange
			continue
		}
		if clamped < 0 {
			clamped = 0
		} else if clamped > 1 {
			clamped = 1
		}
		if clamped != *v.value {
			problems = append(problems, &fan.ConfigError{Field: v.name,
				Value: formatFloat(*v.value), Err: fmt.Errorf("outside [0, 1], clamped to %g", clamped)})
			*v.value = clamped
		}
	}

	problems = append(problems, s.orderRanges()...)

	if s.TransitionSpeed <= 0 || s.TransitionSpeed > 1 {
		problems = append(problems, &fan.ConfigError{Field: "transition_speed",
			Value: formatFloat(s.TransitionSpeed), Err: errors.New("must be within (0, 1]")})
		s.TransitionSpeed = defaults.TransitionSpeed
	}
	if s.ManualHold < 0 {
		problems = append(problems, &fan.ConfigError{Field: "manual_hold",
			Value: s.ManualHold.String(), Err: errors.New("must not be negative")})
		s.ManualHold = 0
	}
	if s.Buffer < 0 {
		problems = append(problems, &fan.ConfigError{Field: "buffer_ms",
			Value: s.Buffer.String(), Err: errors.New("must not be negative")})
		s.Buffer = 0
	}
	if s.Backend == "" {
		s.Backend = defaults.Backend
	}

	problems = append(problems, s.repairRange()...)
	return problems
}

// orderRanges swaps inverted min/max pairs
func (s *Settings) orderRanges() []error {
	var problems []error
	if s.Range.MinFrequency > s.Range.MaxFrequency {
		problems = append(problems, &fan.ConfigError{Field: "min_freq",
			Value: formatFloat(s.Range.MinFrequency), Err: errors.New("greater than max_freq, swapped")})
		s.Range.MinFrequency, s.Range.MaxFrequency = s.Range.MaxFrequency, s.Range.MinFrequency
	}
	if s.Range.MinVolume > s.Range.MaxVolume {
		problems = append(problems, &fan.ConfigError{Field: "min_volume",
			Value: formatFloat(s.Range.MinVolume), Err: errors.New("greater than max_volume, swapped")})
		s.Range.MinVolume, s.Range.MaxVolume = s.Range.MaxVolume, s.Range.MinVolume
	}
	return problems
}

// repairRange resets each invalid range field to its default, keeping the
// valid ones. The whole range falls back to defaults only when a field is
// still invalid after its own reset.
func (s *Settings) repairRange() []error {
	var problems []error
	reset := make(map[string]bool)

	for {
		err := s.Range.Validate()
		if err == nil {
			break
		}
		problems = append(problems, err)

		var cfgErr *fan.ConfigError
		if !errors.As(err, &cfgErr) {
			s.Range = Default().Range
			return problems
		}
		restore, known := rangeDefaults[cfgErr.Field]
		if !known || reset[cfgErr.Field] {
			s.Range = Default().Range
			return problems
		}
		restore(&s.Range)
		reset[cfgErr.Field] = true
	}

	// A reset field can end up on the wrong side of its partner
	problems = append(problems, s.orderRanges()...)
	if err := s.Range.Validate(); err != nil {
		problems = append(problems, err)
		s.Range = Default().Range
	}
	return problems
}

// Save writes s to path as an INI document
func Save(path string, s Settings) error {
	doc := ini.Empty()
	for _, f := range fields {
		if _, err := doc.Section(f.section).NewKey(f.key, f.get(&s)); err != nil {
			return fmt.Errorf("failed to set %s.%s: %w", f.section, f.key, err)
		}
	}
	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func parseFloat(raw string, dst *float64) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseInt(raw string, dst *int) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseMillis(raw string, dst *time.Duration) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*dst = time.Duration(v) * time.Millisecond
	return nil
}

func parseBool(raw string, dst *bool) error {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
