package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	content := `
detector:
  confidence_threshold: 0.5
  max_detections: 50
tracker:
  min_hits: 2
  gate_metric: geometric
  gate_threshold: 1.0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Detector.ConfidenceThreshold)
	assert.Equal(t, 50, cfg.Detector.MaxDetections)
	assert.Equal(t, 2, cfg.Tracker.MinHits)
	assert.Equal(t, "geometric", cfg.Tracker.GateMetric)

	// untouched fields keep their defaults
	assert.Equal(t, 0.45, cfg.Detector.NMSIoUThreshold)
	assert.Equal(t, 30, cfg.Tracker.MaxAgeConfirmed)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad threshold": "detector:\n  confidence_threshold: 1.5\n",
		"bad matching":  "tracker:\n  matching: quantum\n",
		"bad metric":    "tracker:\n  gate_metric: psychic\n",
		"bad level":     "logging:\n  level: shouting\n",
		"reid no model": "reid:\n  enabled: true\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
