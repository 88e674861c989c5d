// Package config aggregates the tuning parameters of every analytics
// component into one JSON-loadable document. Files may be partial: values
// are unmarshalled over the defaults, so omitted fields keep their default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wildtrack-data/ethogram/internal/cache"
	"github.com/wildtrack-data/ethogram/internal/detect"
	"github.com/wildtrack-data/ethogram/internal/store"
	"github.com/wildtrack-data/ethogram/internal/temporal"
)

// maxConfigFileSize guards against loading an obviously wrong file.
const maxConfigFileSize = 1 * 1024 * 1024

// EngineConfig holds the predictive engine's own parameters.
type EngineConfig struct {
	EnablePrediction           bool `json:"enable_prediction"`
	EnablePatternDetection     bool `json:"enable_pattern_detection"`
	EnableAnomalyDetection     bool `json:"enable_anomaly_detection"`
	EnableConservationInsights bool `json:"enable_conservation_insights"`
	EnablePowerOptimization    bool `json:"enable_power_optimization"`

	ShortWindowSeconds  int64 `json:"short_window_seconds"`
	MediumWindowSeconds int64 `json:"medium_window_seconds"`
	LongWindowSeconds   int64 `json:"long_window_seconds"`

	PredictionConfidenceThreshold float64 `json:"prediction_confidence_threshold"`
	AnomalyDetectionThreshold     float64 `json:"anomaly_detection_threshold"`

	// Readiness gate: how much stored data unlocks predictions.
	ReadinessMinRecords     int   `json:"readiness_min_records"`
	ReadinessMinSpanSeconds int64 `json:"readiness_min_span_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Store    store.Config    `json:"store"`
	Cache    cache.Config    `json:"cache"`
	Detector detect.Config   `json:"detector"`
	Analyzer temporal.Config `json:"analyzer"`
	Engine   EngineConfig    `json:"engine"`
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		Store:    store.DefaultConfig(),
		Cache:    cache.DefaultConfig(),
		Detector: detect.DefaultConfig(),
		Analyzer: temporal.DefaultConfig(),
		Engine: EngineConfig{
			EnablePrediction:              true,
			EnablePatternDetection:        true,
			EnableAnomalyDetection:        true,
			EnableConservationInsights:    true,
			EnablePowerOptimization:       false,
			ShortWindowSeconds:            300,
			MediumWindowSeconds:           3600,
			LongWindowSeconds:             86400,
			PredictionConfidenceThreshold: 0.7,
			AnomalyDetectionThreshold:     0.8,
			ReadinessMinRecords:           30,
			ReadinessMinSpanSeconds:       600,
		},
	}
}

// Load reads a JSON config file over the defaults. Fields omitted from the
// file retain their default values, so partial configs are safe.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints a bad override could break.
func (c Config) Validate() error {
	if c.Store.MaxMemoryKB <= 0 {
		return fmt.Errorf("store.max_memory_kb must be positive, got %d", c.Store.MaxMemoryKB)
	}
	if c.Cache.MaxPatterns <= 0 {
		return fmt.Errorf("cache.max_patterns must be positive, got %d", c.Cache.MaxPatterns)
	}
	if c.Detector.MinObservations <= 0 {
		return fmt.Errorf("detector.min_observations must be positive, got %d", c.Detector.MinObservations)
	}
	if c.Detector.MaxPatternLength < 2 {
		return fmt.Errorf("detector.max_pattern_length must be at least 2, got %d", c.Detector.MaxPatternLength)
	}
	if t := c.Engine.PredictionConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("engine.prediction_confidence_threshold outside [0,1]: %f", t)
	}
	if t := c.Engine.AnomalyDetectionThreshold; t < 0 || t > 1 {
		return fmt.Errorf("engine.anomaly_detection_threshold outside [0,1]: %f", t)
	}
	if c.Engine.MediumWindowSeconds <= 0 {
		return fmt.Errorf("engine.medium_window_seconds must be positive, got %d", c.Engine.MediumWindowSeconds)
	}
	return nil
}
