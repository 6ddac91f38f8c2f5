package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Server.DataAddress)
	assert.Equal(t, 32, cfg.Composition.HopCap)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("composition:\n  file: comp.yaml\n  hop_cap: 10\nlogging:\n  level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "comp.yaml", cfg.Composition.File)
	assert.Equal(t, 10, cfg.Composition.HopCap)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("POLIS_LOG_LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
