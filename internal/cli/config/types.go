// Package config loads the beamline CLI configuration with koanf.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/beamline/internal/cli/output"
	"github.com/leapstack-labs/beamline/pkg/beam"
)

// Default configuration values.
const (
	DefaultConfigFile      = "beamline.yaml"
	DefaultBeamWidth       = 1
	DefaultMaxAnalysisTime = 60.0
	DefaultJournalPath     = ".beamline/journal.db"
	DefaultOutput          = string(output.ModeAuto)
	DefaultPort            = 8080
	DefaultEnvPrefix       = "BEAMLINE_"
)

// ServerConfig holds server mode settings.
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// Config holds all CLI configuration options.
type Config struct {
	// Decoding
	BeamWidth     int  `koanf:"beam_width"`
	PropagateBeam bool `koanf:"propagate_beam"`
	TopN          int  `koanf:"top_n"`
	// MaxAnalysisTime is in seconds; 0 is unbounded.
	MaxAnalysisTime float64 `koanf:"max_analysis_time"`
	IncludeDetails  bool    `koanf:"include_details"`
	DisableCache    bool    `koanf:"disable_cache"`

	// Resources
	Features  string `koanf:"features"`
	Model     string `koanf:"model"`
	Resources string `koanf:"resources"`

	// Batch processing
	Workers       int  `koanf:"workers"`
	StopOnError   bool `koanf:"stop_on_error"`
	Repair        bool `koanf:"repair"`
	StartSentence int  `koanf:"start_sentence"`
	MaxSentences  int  `koanf:"max_sentences"`

	JournalPath string       `koanf:"journal_path"`
	Verbose     bool         `koanf:"verbose"`
	Output      string       `koanf:"output"`
	Server      ServerConfig `koanf:"server"`
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.BeamWidth < 1 {
		errs = append(errs, fmt.Errorf("beam_width must be at least 1, got %d", c.BeamWidth))
	}
	if c.TopN < 0 {
		errs = append(errs, fmt.Errorf("top_n must not be negative, got %d", c.TopN))
	}
	if c.MaxAnalysisTime < 0 {
		errs = append(errs, fmt.Errorf("max_analysis_time must not be negative, got %g", c.MaxAnalysisTime))
	}
	if c.Workers < 0 || c.StartSentence < 0 || c.MaxSentences < 0 {
		errs = append(errs, errors.New("workers, start_sentence and max_sentences must not be negative"))
	}
	if _, err := output.ParseMode(c.Output); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// BeamOptions converts the decoding settings.
func (c *Config) BeamOptions(logger *slog.Logger) beam.Options {
	return beam.Options{
		BeamWidth:       c.BeamWidth,
		PropagateBeam:   c.PropagateBeam,
		TopN:            c.TopN,
		MaxAnalysisTime: time.Duration(c.MaxAnalysisTime * float64(time.Second)),
		IncludeDetails:  c.IncludeDetails,
		DisableCache:    c.DisableCache,
		Logger:          logger,
	}
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		BeamWidth:       DefaultBeamWidth,
		MaxAnalysisTime: DefaultMaxAnalysisTime,
		StopOnError:     true,
		Repair:          true,
		JournalPath:     DefaultJournalPath,
		Output:          DefaultOutput,
		Server:          ServerConfig{Port: DefaultPort},
	}
}

type (
	configKey struct{}
	loggerKey struct{}
)

// WithConfig stores cfg on the context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig returns the config stored on ctx, or the defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return Defaults()
}

// WithLogger stores the logger on the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// GetLogger returns the logger stored on ctx, or a discarding logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
