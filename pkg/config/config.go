// Package config holds the analysis settings: defaults, YAML file loading
// and validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/stormcheck/pkg/algorithms"
	"github.com/dd0wney/stormcheck/pkg/corpus"
	"github.com/dd0wney/stormcheck/pkg/logging"
	"github.com/dd0wney/stormcheck/pkg/parallel"
	"github.com/dd0wney/stormcheck/pkg/patterns"
	"github.com/dd0wney/stormcheck/pkg/report"
	"github.com/dd0wney/stormcheck/pkg/validation"
)

// IOSourceMarkers are the name fragments that mark a block type as an I/O
// event source when trace.io_sources_only is set.
var IOSourceMarkers = []string{"IO", "DI", "AI", "DO", "AO"}

// Config is the complete analysis configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Trace    TraceConfig    `yaml:"trace"`
	Loader   LoaderConfig   `yaml:"loader"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AnalysisConfig bounds the loop search and the fan-out rules.
type AnalysisConfig struct {
	MaxDepth           int     `yaml:"max_depth" validate:"min=0,max=16"`
	FanoutThreshold    float64 `yaml:"fanout_threshold" validate:"gt=0"`
	ExplosiveThreshold float64 `yaml:"explosive_threshold" validate:"gt=0"`
}

// TraceConfig selects cascade sources and caps the reported paths.
type TraceConfig struct {
	// Sources restricts tracing to types whose name contains one of these
	// fragments. Empty traces every type.
	Sources []string `yaml:"sources" validate:"dive,required"`
	// IOSourcesOnly adds IOSourceMarkers to Sources.
	IOSourcesOnly bool `yaml:"io_sources_only"`
	MaxPaths      int  `yaml:"max_paths" validate:"min=0"`
}

// LoaderConfig controls corpus discovery and parsing.
type LoaderConfig struct {
	Extensions []string `yaml:"extensions" validate:"required,min=1,dive,fileext"`
	Workers    int      `yaml:"workers" validate:"min=0,max=256"`
	IgnoreDirs []string `yaml:"ignore_dirs" validate:"dive,required"`
}

// OutputConfig says where the report and metrics go.
type OutputConfig struct {
	Path        string   `yaml:"path"`
	Format      string   `yaml:"format" validate:"oneof=json text"`
	MetricsFile string   `yaml:"metrics_file"`
	S3          S3Config `yaml:"s3"`
}

// S3Config points s3:// report paths at a specific region or an
// S3-compatible endpoint. Keys are read from the environment, never the file.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
	PathStyle bool   `yaml:"path_style"`
}

// Environment variables holding static S3 keys.
const (
	EnvS3AccessKeyID     = "STORMCHECK_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "STORMCHECK_S3_SECRET_ACCESS_KEY"
)

// LoggingConfig configures the stderr logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	th := patterns.DefaultThresholds()
	lo := corpus.DefaultOptions()
	return &Config{
		Analysis: AnalysisConfig{
			MaxDepth:           th.LoopDepth,
			FanoutThreshold:    th.Fanout,
			ExplosiveThreshold: th.Explosive,
		},
		Trace: TraceConfig{
			MaxPaths: 1000,
		},
		Loader: LoaderConfig{
			Extensions: lo.Extensions,
			IgnoreDirs: lo.IgnoreDirs,
		},
		Output: OutputConfig{
			Format: string(report.FormatJSON),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field bounds and the rules that span fields.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}

	cv := validation.NewConfigValidator("analysis")
	cv.GreaterFloat("explosive_threshold", c.Analysis.ExplosiveThreshold,
		"fanout_threshold", c.Analysis.FanoutThreshold)

	ov := validation.NewConfigValidator("output")
	ov.When(c.Output.MetricsFile != "", func(v *validation.ConfigValidator) {
		v.Custom("metrics_file", func() error {
			if c.Output.MetricsFile == c.Output.Path {
				return errors.New("must differ from the report path")
			}
			return nil
		})
	})

	return errors.Join(cv.Validate(), ov.Validate())
}

// Thresholds returns the classifier rule bounds.
func (c *Config) Thresholds() patterns.Thresholds {
	return patterns.Thresholds{
		LoopDepth: c.Analysis.MaxDepth,
		Fanout:    c.Analysis.FanoutThreshold,
		Explosive: c.Analysis.ExplosiveThreshold,
	}
}

// TraceOptions returns the cascade tracer options.
func (c *Config) TraceOptions() algorithms.TraceOptions {
	sources := append([]string(nil), c.Trace.Sources...)
	if c.Trace.IOSourcesOnly {
		sources = append(sources, IOSourceMarkers...)
	}
	return algorithms.TraceOptions{
		Sources:  sources,
		MaxPaths: c.Trace.MaxPaths,
	}
}

// LoaderOptions returns the corpus loader options.
func (c *Config) LoaderOptions() corpus.Options {
	return corpus.Options{
		Extensions: append([]string(nil), c.Loader.Extensions...),
		Workers:    validation.ClampInt(c.Loader.Workers, 0, parallel.MaxWorkers),
		IgnoreDirs: append([]string(nil), c.Loader.IgnoreDirs...),
	}
}

// S3Options returns the S3 sink settings, with static keys taken from the
// environment when present.
func (c *Config) S3Options() report.S3Options {
	return report.S3Options{
		Region:          c.Output.S3.Region,
		Endpoint:        c.Output.S3.Endpoint,
		UsePathStyle:    c.Output.S3.PathStyle,
		AccessKeyID:     os.Getenv(EnvS3AccessKeyID),
		SecretAccessKey: os.Getenv(EnvS3SecretAccessKey),
	}
}

// LogFormat returns the configured log format.
func (c *Config) LogFormat() logging.Format {
	if c.Logging.Format == "text" {
		return logging.FormatText
	}
	return logging.FormatJSON
}

// LogLevel returns the configured minimum log level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}
