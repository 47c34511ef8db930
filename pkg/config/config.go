package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// SimulationConfig controls the orchestrator's tick loop
type SimulationConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval" validate:"required"`
	EntityCount   int           `yaml:"entity_count" validate:"required,min=1"`
	HistoryLength int           `yaml:"history_length" validate:"required,min=1"`
	Workers       int           `yaml:"workers" validate:"min=0"`
	Seed          int64         `yaml:"seed"`
}

// DetectionConfig tunes the vulnerability detector
type DetectionConfig struct {
	Sensitivity             float64 `yaml:"sensitivity" validate:"gt=0,lte=1"`
	PatternConfidenceCutoff float64 `yaml:"pattern_confidence_cutoff" validate:"gte=0,lte=1"`
	PatchAgeThresholdDays   int     `yaml:"patch_age_threshold_days" validate:"min=1"`
	TargetFalsePositiveRate float64 `yaml:"target_false_positive_rate" validate:"gte=0,lt=1"`
}

// AnomalyConfig tunes the unsupervised outlier model
type AnomalyConfig struct {
	Contamination float64 `yaml:"contamination" validate:"gt=0,lte=0.5"`
	EnsembleSize  int     `yaml:"ensemble_size" validate:"min=1"`
	SampleSize    int     `yaml:"sample_size" validate:"min=2"`
	MinPopulation int     `yaml:"min_population" validate:"min=1"`
	RetrainEvery  int     `yaml:"retrain_every" validate:"min=1"`
}

// PredictionConfig tunes the attack predictor
type PredictionConfig struct {
	ProbabilityFloor float64 `yaml:"probability_floor" validate:"gte=0,lt=1"`
	MaxTargets       int     `yaml:"max_targets" validate:"min=1"`
	RecentEventCount int     `yaml:"recent_event_count" validate:"min=1"`
}

// ScoringConfig fixes the evaluator's domain weights. The weights are
// part of the scoring contract: they must sum to exactly 1.0 and are
// never renormalized, so scores stay comparable across deployments.
type ScoringConfig struct {
	Weights DomainWeights `yaml:"weights"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// ServerConfig controls the read-only dashboard API
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"required"`
}

// Config is the full engine configuration
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Detection  DetectionConfig  `yaml:"detection"`
	Anomaly    AnomalyConfig    `yaml:"anomaly"`
	Prediction PredictionConfig `yaml:"prediction"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// Default returns the configuration used when no file overrides it
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			TickInterval:  1 * time.Second,
			EntityCount:   50,
			HistoryLength: 100,
			Workers:       4,
			Seed:          42,
		},
		Detection: DetectionConfig{
			Sensitivity:             0.8,
			PatternConfidenceCutoff: 0.5,
			PatchAgeThresholdDays:   90,
			TargetFalsePositiveRate: 0.02,
		},
		Anomaly: AnomalyConfig{
			Contamination: 0.1,
			EnsembleSize:  100,
			SampleSize:    64,
			MinPopulation: 10,
			RetrainEvery:  10,
		},
		Prediction: PredictionConfig{
			ProbabilityFloor: 0.05,
			MaxTargets:       5,
			RecentEventCount: 20,
		},
		Scoring: ScoringConfig{
			Weights: DefaultDomainWeights(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads YAML configuration from path, layered over defaults.
// A missing file is not an error; invalid values are.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field rules, collecting all errors
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	cv := NewConfigValidator("Config")
	cv.MinDuration("simulation.tick_interval", c.Simulation.TickInterval, 10*time.Millisecond)
	cv.RangeFloat("anomaly.contamination", c.Anomaly.Contamination, 0, 0.5)
	cv.MinInt("anomaly.min_population", c.Anomaly.MinPopulation, 1)
	if err := c.Scoring.Weights.Validate(); err != nil {
		cv.AddError(err)
	}
	return cv.Err()
}
