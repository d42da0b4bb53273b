// Package config loads planner settings from YAML. Values are resolved from
// (highest to lowest priority):
// 1. Environment variables (GBOP_*)
// 2. The config file
// 3. Defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"gbop/experiments/metrics"
	"gbop/searcher"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds the planner configuration.
type Config struct {
	// Horizon fixes the rollout length. When 0, it is derived from Budget
	// together with Episodes.
	Horizon  int `yaml:"horizon" validate:"gte=0"`
	Episodes int `yaml:"episodes" validate:"gte=0,required_with=Horizon"`
	Budget   int `yaml:"budget" validate:"gte=1"`

	Gamma    float64 `yaml:"gamma" validate:"gt=0,lte=1"`
	Accuracy float64 `yaml:"accuracy" validate:"gte=0"`

	MaxNextStatesCount int `yaml:"max_next_states_count" validate:"gte=1"`
	// MaxPropagations caps node updates per backup (0 = no cap).
	MaxPropagations int `yaml:"max_propagations" validate:"gte=0"`

	Seed       uint64              `yaml:"seed"`
	ReuseGraph bool                `yaml:"reuse_graph"`
	UpperBound searcher.UpperBound `yaml:"upper_bound"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Trace   TraceConfig   `yaml:"trace"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error disabled"`
}

type MetricsConfig struct {
	// Prometheus exports search metrics on Addr.
	Prometheus bool   `yaml:"prometheus"`
	Addr       string `yaml:"addr" validate:"required_if=Prometheus true"`
}

type TraceConfig struct {
	// Exporter receives planner spans: "none" or "stdout".
	Exporter    string `yaml:"exporter" validate:"oneof=none stdout"`
	ServiceName string `yaml:"service_name" validate:"required"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Budget:             searcher.DefaultBudget,
		Gamma:              searcher.DefaultGamma,
		Accuracy:           searcher.DefaultAccuracy,
		MaxNextStatesCount: searcher.DefaultMaxNextStates,
		MaxPropagations:    searcher.DefaultMaxPropagations,
		UpperBound:         searcher.DefaultUpperBound(),
		Log:                LogConfig{Level: "info"},
		Metrics:            MetricsConfig{Addr: ":2112"},
		Trace:              TraceConfig{Exporter: "none", ServiceName: "gbop"},
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("formula", validateFormula)
	validate.RegisterStructValidation(validateAllocation, Config{})
}

func validateFormula(fl validator.FieldLevel) bool {
	return slices.Contains(searcher.Formulas(), fl.Field().String())
}

// Deriving episodes and horizon from the budget needs a discount below one.
func validateAllocation(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if cfg.Horizon == 0 && cfg.Gamma >= 1 {
		sl.ReportError(cfg.Gamma, "Gamma", "gamma", "lt_without_horizon", "")
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode rejects unknown keys so that typos do not silently keep defaults.
func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("GBOP_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GBOP_SEED %q: %w", v, err)
		}
		cfg.Seed = seed
	}
	if v := os.Getenv("GBOP_BUDGET"); v != "" {
		budget, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GBOP_BUDGET %q: %w", v, err)
		}
		cfg.Budget = budget
	}
	if v := os.Getenv("GBOP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GBOP_TRACE_EXPORTER"); v != "" {
		cfg.Trace.Exporter = v
	}
	return nil
}

// Validate checks field constraints and the upper-bound scheme.
func (c *Config) Validate() error {
	if c.UpperBound.Type != searcher.KullbackLeibler {
		return fmt.Errorf("%w: %q", searcher.ErrUnknownBound, c.UpperBound.Type)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", searcher.ErrConfig, err)
	}
	return nil
}

// Level is the zerolog level named by Log.Level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// Options converts the configuration into planner options reporting to collector.
func (c *Config) Options(collector metrics.Collector) []searcher.Option {
	options := []searcher.Option{
		searcher.WithBudget(c.Budget),
		searcher.WithGamma(c.Gamma),
		searcher.WithAccuracy(c.Accuracy),
		searcher.WithMaxNextStates(c.MaxNextStatesCount),
		searcher.WithMaxPropagations(c.MaxPropagations),
		searcher.WithUpperBound(c.UpperBound),
		searcher.WithSeed(c.Seed),
		searcher.WithGraphReuse(c.ReuseGraph),
		searcher.WithMetrics(collector),
	}
	if c.Horizon > 0 {
		options = append(options, searcher.WithHorizon(c.Horizon), searcher.WithEpisodes(c.Episodes))
	}
	return options
}

// NewPlanner builds a planner from the configuration.
func (c *Config) NewPlanner(collector metrics.Collector) (*searcher.Planner, error) {
	return searcher.NewPlanner(c.Options(collector)...)
}
