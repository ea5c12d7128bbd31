package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/syncmerge/pkg/errors"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, config)

	// LogLevel may be empty; the logger applies its own precedence.
	assert.NotEmpty(t, config.LogFormat)
	assert.NotEmpty(t, config.LogOutput)
}

func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("SYNCMERGE_FORMAT", "json")
	t.Setenv("SYNCMERGE_RULES", "team-rules.yaml")
	t.Setenv("SYNCMERGE_TIME_WINDOW", "90s")
	t.Setenv("SYNCMERGE_PREFER_LOCAL_ON_COLLISION", "true")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "json", config.Format)
	assert.Equal(t, "team-rules.yaml", config.RulesFile)
	assert.Equal(t, 90*time.Second, config.TimeWindow)
	assert.True(t, config.PreferLocalOnCollision)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncmerge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: yaml\nanalysis_timeout: 2s\nlog_level: debug\n"), 0o600))

	config, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, config.ConfigFile)
	assert.Equal(t, "yaml", config.Format)
	assert.Equal(t, 2*time.Second, config.AnalysisTimeout)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("format: [unclosed\n"), 0o600))
	_, err = LoadConfigFile(bad)
	assert.Error(t, err)
}

func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "table", LogLevel: "info", RulesFile: "a.yaml"}

	config.UpdateFromFlags(true, false, "", "", "")
	assert.True(t, config.Verbose)
	assert.Equal(t, "table", config.Format)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "a.yaml", config.RulesFile)

	config.UpdateFromFlags(false, true, "json", "error", "b.yaml")
	assert.False(t, config.Verbose)
	assert.True(t, config.Quiet)
	assert.Equal(t, "json", config.Format)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, "b.yaml", config.RulesFile)
}
