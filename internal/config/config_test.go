package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/ethogram/internal/detect"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPartialOverride(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "tuning.json", `{
		"store": {"max_memory_kb": 256},
		"detector": {"min_confidence": 0.5},
		"engine": {"readiness_min_records": 10}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden fields take the file's values.
	assert.Equal(t, 256, cfg.Store.MaxMemoryKB)
	assert.Equal(t, 0.5, cfg.Detector.MinConfidence)
	assert.Equal(t, 10, cfg.Engine.ReadinessMinRecords)

	// Omitted fields keep their defaults.
	def := Default()
	assert.Equal(t, def.Cache.MaxPatterns, cfg.Cache.MaxPatterns)
	assert.Equal(t, def.Detector.MinObservations, cfg.Detector.MinObservations)
	assert.Equal(t, def.Engine.MediumWindowSeconds, cfg.Engine.MediumWindowSeconds)
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "tuning.yaml", `{}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, ".json")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadMalformedJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "broken.json", `{"store": `)
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "bad.json", `{"store": {"max_memory_kb": -1}}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "max_memory_kb")
}

func TestValidateCrossFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero store budget", func(c *Config) { c.Store.MaxMemoryKB = 0 }},
		{"zero cache capacity", func(c *Config) { c.Cache.MaxPatterns = 0 }},
		{"zero detector support", func(c *Config) { c.Detector.MinObservations = 0 }},
		{"pattern length below two", func(c *Config) { c.Detector.MaxPatternLength = 1 }},
		{"prediction threshold above one", func(c *Config) { c.Engine.PredictionConfidenceThreshold = 1.5 }},
		{"negative anomaly threshold", func(c *Config) { c.Engine.AnomalyDetectionThreshold = -0.1 }},
		{"zero medium window", func(c *Config) { c.Engine.MediumWindowSeconds = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDetectorAlgorithm(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "algo.json", `{"detector": {"primary_algorithm": 2}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, detect.AlgorithmMarkov, cfg.Detector.PrimaryAlgorithm)
}
