package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/fallwatch/internal/fall"
	"github.com/banshee-data/fallwatch/internal/pose"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the classifier and sample-store thresholds. Every field
// is optional; the Get* accessors supply defaults for anything unset.
type TuningConfig struct {
	// Classifier params
	MinTimeBetweenFrames *string  `json:"min_time_between_frames,omitempty"` // duration string like "1s"
	MaxTimeBetweenFrames *string  `json:"max_time_between_frames,omitempty"`
	FallAngleDegrees     *float64 `json:"fall_angle_degrees,omitempty"`
	ConfidenceThreshold  *float64 `json:"confidence_threshold,omitempty"`

	// Decoder strategy: "heatmap" or "regression"
	Decoder *string `json:"decoder,omitempty"`

	// Sample store params
	PositiveInterval *string `json:"positive_interval,omitempty"`
	IdleInterval     *string `json:"idle_interval,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated with its
// default value.
func DefaultTuningConfig() *TuningConfig {
	def := fall.DefaultConfig()
	return &TuningConfig{
		MinTimeBetweenFrames: ptrString(def.MinTimeBetweenFrames.String()),
		MaxTimeBetweenFrames: ptrString(def.MaxTimeBetweenFrames.String()),
		FallAngleDegrees:     ptrFloat64(def.FallAngleDegrees),
		ConfidenceThreshold:  ptrFloat64(def.ConfidenceThreshold),
		Decoder:              ptrString(pose.StrategyHeatmap),
		PositiveInterval:     ptrString("2s"),
		IdleInterval:         ptrString("10m0s"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// Fields omitted from the file fall back to their defaults, so partial
// configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and its parents.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/inference/remote/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	durations := []struct {
		name  string
		value *string
	}{
		{"min_time_between_frames", c.MinTimeBetweenFrames},
		{"max_time_between_frames", c.MaxTimeBetweenFrames},
		{"positive_interval", c.PositiveInterval},
		{"idle_interval", c.IdleInterval},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.value)
		}
	}

	if c.Decoder != nil && *c.Decoder != "" {
		if _, err := pose.NewDecoder(*c.Decoder, pose.DefaultDecoderConfig()); err != nil {
			return fmt.Errorf("invalid decoder: %w", err)
		}
	}

	// Cross-field checks run on the merged view so a partial file is
	// validated against the defaults it will actually run with.
	if err := c.FallConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// FallConfig returns the classifier thresholds with defaults applied.
func (c *TuningConfig) FallConfig() fall.Config {
	return fall.Config{
		MinTimeBetweenFrames: c.GetMinTimeBetweenFrames(),
		MaxTimeBetweenFrames: c.GetMaxTimeBetweenFrames(),
		FallAngleDegrees:     c.GetFallAngleDegrees(),
		ConfidenceThreshold:  c.GetConfidenceThreshold(),
	}
}

// DecoderConfig returns the keypoint decoder settings.
func (c *TuningConfig) DecoderConfig() pose.DecoderConfig {
	return pose.DecoderConfig{ConfidenceThreshold: c.GetConfidenceThreshold()}
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetMinTimeBetweenFrames returns min_time_between_frames or the default.
func (c *TuningConfig) GetMinTimeBetweenFrames() time.Duration {
	return parseDurationOr(c.MinTimeBetweenFrames, fall.DefaultConfig().MinTimeBetweenFrames)
}

// GetMaxTimeBetweenFrames returns max_time_between_frames or the default.
func (c *TuningConfig) GetMaxTimeBetweenFrames() time.Duration {
	return parseDurationOr(c.MaxTimeBetweenFrames, fall.DefaultConfig().MaxTimeBetweenFrames)
}

// GetFallAngleDegrees returns fall_angle_degrees or the default.
func (c *TuningConfig) GetFallAngleDegrees() float64 {
	if c.FallAngleDegrees == nil {
		return fall.DefaultConfig().FallAngleDegrees
	}
	return *c.FallAngleDegrees
}

// GetConfidenceThreshold returns confidence_threshold or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return fall.DefaultConfig().ConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

// GetDecoder returns the decoder strategy name.
func (c *TuningConfig) GetDecoder() string {
	if c.Decoder == nil || *c.Decoder == "" {
		return pose.StrategyHeatmap
	}
	return *c.Decoder
}

// GetPositiveInterval returns the minimum gap between stored fall samples.
func (c *TuningConfig) GetPositiveInterval() time.Duration {
	return parseDurationOr(c.PositiveInterval, 2*time.Second)
}

// GetIdleInterval returns the minimum gap between stored no-fall samples.
func (c *TuningConfig) GetIdleInterval() time.Duration {
	return parseDurationOr(c.IdleInterval, 10*time.Minute)
}
