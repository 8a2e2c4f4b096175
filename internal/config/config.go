// Package config provides configuration management for the tracking
// pipeline. A YAML file overrides the defaults; everything is read once
// at startup.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the root pipeline configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Detector DetectorConfig `yaml:"detector"`
	Reid     ReidConfig     `yaml:"reid"`
	Tracker  TrackerConfig  `yaml:"tracker"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ServerConfig holds the observability HTTP listener settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DetectorConfig holds detection model and post-filter settings.
type DetectorConfig struct {
	ModelPath           string  `yaml:"model_path"`
	LabelsPath          string  `yaml:"labels_path"`
	InputWidth          int     `yaml:"input_width"`
	InputHeight         int     `yaml:"input_height"`
	Stride              int     `yaml:"stride"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	NMSIoUThreshold     float64 `yaml:"nms_iou_threshold"`
	MaxDetections       int     `yaml:"max_detections"`
}

// ReidConfig holds appearance-embedding settings.
type ReidConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ModelPath   string `yaml:"model_path"`
	InputWidth  int    `yaml:"input_width"`
	InputHeight int    `yaml:"input_height"`
	OutputLayer string `yaml:"output_layer"`
}

// TrackerConfig holds association and lifecycle settings.
type TrackerConfig struct {
	MinHits          int     `yaml:"min_hits"`
	MaxAgeTentative  int     `yaml:"max_age_tentative"`
	MaxAgeConfirmed  int     `yaml:"max_age_confirmed"`
	GateMetric       string  `yaml:"gate_metric"` // mahalanobis or geometric
	GateThreshold    float64 `yaml:"gate_threshold"`
	MinScore         float64 `yaml:"min_score"`
	AppearanceWeight float64 `yaml:"appearance_weight"`
	EmbeddingAlpha   float64 `yaml:"embedding_alpha"`
	Matching         string  `yaml:"matching"` // hungarian or greedy
}

// Default returns the configuration matching the classic
// YOLO + DeepSORT-style setup.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Enabled: true,
			Listen:  ":8080",
		},
		Detector: DetectorConfig{
			InputWidth:          640,
			InputHeight:         640,
			Stride:              32,
			ConfidenceThreshold: 0.3,
			NMSIoUThreshold:     0.45,
			MaxDetections:       100,
		},
		Reid: ReidConfig{
			Enabled:     false,
			InputWidth:  128,
			InputHeight: 256,
			OutputLayer: "output",
		},
		Tracker: TrackerConfig{
			MinHits:          3,
			MaxAgeTentative:  3,
			MaxAgeConfirmed:  30,
			GateMetric:       "mahalanobis",
			GateThreshold:    9.4877,
			MinScore:         0.1,
			AppearanceWeight: 0.25,
			EmbeddingAlpha:   0.1,
			Matching:         "hungarian",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "can't parse config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config in %s", path)
	}
	return cfg, nil
}

// Validate checks value ranges and enum fields.
func (c *Config) Validate() error {
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		return errors.Errorf("detector.confidence_threshold must be in [0, 1], got %f", c.Detector.ConfidenceThreshold)
	}
	if c.Detector.NMSIoUThreshold < 0 || c.Detector.NMSIoUThreshold > 1 {
		return errors.Errorf("detector.nms_iou_threshold must be in [0, 1], got %f", c.Detector.NMSIoUThreshold)
	}
	if c.Detector.MaxDetections <= 0 {
		return errors.Errorf("detector.max_detections must be positive, got %d", c.Detector.MaxDetections)
	}
	if c.Detector.Stride <= 0 {
		return errors.Errorf("detector.stride must be positive, got %d", c.Detector.Stride)
	}
	if c.Tracker.MinHits < 1 {
		return errors.Errorf("tracker.min_hits must be at least 1, got %d", c.Tracker.MinHits)
	}
	if c.Tracker.MaxAgeTentative < 0 || c.Tracker.MaxAgeConfirmed < 0 {
		return errors.New("tracker max ages must not be negative")
	}
	if c.Tracker.AppearanceWeight < 0 || c.Tracker.AppearanceWeight > 1 {
		return errors.Errorf("tracker.appearance_weight must be in [0, 1], got %f", c.Tracker.AppearanceWeight)
	}
	if c.Tracker.MinScore <= 0 {
		return errors.Errorf("tracker.min_score must be positive, got %f", c.Tracker.MinScore)
	}
	switch c.Tracker.GateMetric {
	case "mahalanobis", "geometric":
	default:
		return errors.Errorf("tracker.gate_metric must be mahalanobis or geometric, got %q", c.Tracker.GateMetric)
	}
	switch c.Tracker.Matching {
	case "hungarian", "greedy":
	default:
		return errors.Errorf("tracker.matching must be hungarian or greedy, got %q", c.Tracker.Matching)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Reid.Enabled && c.Reid.ModelPath == "" {
		return errors.New("reid.model_path is required when reid is enabled")
	}
	return nil
}
