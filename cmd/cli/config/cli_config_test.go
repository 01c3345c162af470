package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/kano/pkg/constants"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "csv:\n  delimiter: \";\"\nanonymization:\n  k: 5\n  search:\n    max_steps: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ";", config.CSV.Delimiter)
	assert.Equal(t, 5, config.Anonymization.K)
	assert.Equal(t, 4, config.Anonymization.Search.MaxSteps)
	assert.Equal(t, constants.GrowthDoubling, config.Anonymization.Search.Growth)
	assert.Equal(t, constants.OutputFormatCSV, config.DefaultFormat)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KANO_ANONYMIZATION_K", "3")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 3, config.Anonymization.K)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anonymization:\n  search:\n    growth: tripling\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := DefaultConfig()
	config.Anonymization.K = 7
	config.DefaultFormat = constants.OutputFormatJSON

	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Anonymization.K)
	assert.Equal(t, constants.OutputFormatJSON, loaded.DefaultFormat)
}
