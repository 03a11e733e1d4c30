package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Edge Case Tests - scenarios that could cause silent failures or
// unexpected behavior in configuration loading.

// =============================================================================
// Config Merge Edge Cases
// =============================================================================

// TestLoad_ZeroValuesNotMerged tests that explicit zero values in config
// don't override defaults.
func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  max_results: 0
  max_distance: 0
ingest:
  workers: 0
`
	err := os.WriteFile(filepath.Join(tmpDir, ".tesserae.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Search.MaxResults, "zero should not override default max_results")
	assert.Equal(t, 10, cfg.Search.MaxDistance, "zero should not override default max_distance")
	assert.NotZero(t, cfg.Ingest.Workers, "zero should not override default ingest workers")
}

// TestLoad_NegativeMaxDistance_Validated tests that a non-positive
// max_distance is rejected by validation (spec.md §7, "malformed parameters").
func TestLoad_NegativeMaxDistance_Validated(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.MaxDistance = -3

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_distance")
}

// TestLoad_NegativeMinScore_Validated tests that a negative min_score
// is rejected.
func TestLoad_NegativeMinScore_Validated(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.MinScore = -1

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_score")
}

// TestLoad_NegativeMaxResults_Validated tests that a negative max_results
// is rejected.
func TestLoad_NegativeMaxResults_Validated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  max_results: -10
`
	err := os.WriteFile(filepath.Join(tmpDir, ".tesserae.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "max_results must be non-negative")
}

// TestValidate_ZeroFlushThreshold_Rejected tests that a non-positive
// bigram flush threshold is rejected.
func TestValidate_ZeroFlushThreshold_Rejected(t *testing.T) {
	cfg := NewConfig()
	cfg.Bigram.FlushThreshold = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush_threshold")
}

// TestValidate_ZeroRetentionDays_Rejected tests that a non-positive GC
// retention window is rejected.
func TestValidate_ZeroRetentionDays_Rejected(t *testing.T) {
	cfg := NewConfig()
	cfg.GC.RetentionDays = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention_days")
}

// =============================================================================
// Config File Permission Edge Cases
// =============================================================================

// TestLoad_UnreadableConfigFile_ReturnsError tests that unreadable config
// files return an error.
func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Test requires non-root user")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".tesserae.yaml")
	err := os.WriteFile(configPath, []byte("version: 1"), 0o000)
	require.NoError(t, err)
	defer func() { _ = os.Chmod(configPath, 0o644) }()

	cfg, err := Load(tmpDir)

	require.Error(t, err, "Load should fail for unreadable config file")
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read", "error should mention read failure")
}

// =============================================================================
// Config JSON Marshaling Edge Cases
// =============================================================================

// TestConfig_JSON_RoundTrip tests that config can be marshaled to JSON
// and back without data loss.
func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.MaxDistance = 6
	cfg.Search.MinScore = 1.5
	cfg.Search.FreqBasis = FrequencyBasisTexts
	cfg.Bigram.FlushThreshold = 2500

	data, err := jsonMarshal(cfg)
	require.NoError(t, err)

	var parsed Config
	err = jsonUnmarshal(data, &parsed)
	require.NoError(t, err)

	assert.Equal(t, 6, parsed.Search.MaxDistance)
	assert.Equal(t, 1.5, parsed.Search.MinScore)
	assert.Equal(t, FrequencyBasisTexts, parsed.Search.FreqBasis)
	assert.Equal(t, 2500, parsed.Bigram.FlushThreshold)
}

// TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError tests that invalid JSON
// returns an error.
func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	invalidJSON := []byte("{invalid json")

	var cfg Config
	err := jsonUnmarshal(invalidJSON, &cfg)

	require.Error(t, err, "Unmarshal should fail for invalid JSON")
}

// =============================================================================
// Data Directory Edge Cases
// =============================================================================

// TestNewConfig_DerivedPaths_LiveUnderDataDir tests that the SQLite,
// bigram-store, and dictionary paths are all nested under DataDir by
// default so a single override relocates the whole engine's state.
func TestNewConfig_DerivedPaths_LiveUnderDataDir(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, cfg.Paths.DataDir, filepath.Dir(cfg.Paths.SQLitePath))
	assert.Equal(t, cfg.Paths.DataDir, filepath.Dir(cfg.Paths.BigramStorePath))
	assert.Equal(t, cfg.Paths.DataDir, filepath.Dir(cfg.Paths.G2LDictPath))
}
