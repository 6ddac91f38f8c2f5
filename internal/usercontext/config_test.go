package usercontext

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.CurrentName())
	assert.Equal(t, DefaultControlPlanePort, cfg.Local.Port)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config")
	cfg := NewConfig()
	cfg.AddContext(Context{Name: "remote", URL: "http://10.0.0.1:8181", APIKey: "secret"})
	require.NoError(t, cfg.SetCurrent("remote"))
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "remote", loaded.CurrentName())
	url, err := loaded.CurrentURL()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8181", url)
	assert.Equal(t, "secret", loaded.CurrentAPIKey())
}

func TestSetCurrentUnknownContextFails(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.SetCurrent("nonexistent"))
}

func TestSetCurrentBuiltinsAlwaysAllowed(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.SetCurrent("local"))
	assert.NoError(t, cfg.SetCurrent("worker"))
}

func TestRemoveContextClearsCurrent(t *testing.T) {
	cfg := NewConfig()
	cfg.AddContext(Context{Name: "test", URL: "http://localhost:8181"})
	require.NoError(t, cfg.SetCurrent("test"))

	assert.True(t, cfg.RemoveContext("test"))
	assert.Equal(t, "local", cfg.CurrentName())
	assert.False(t, cfg.RemoveContext("test"))
}

func TestCurrentURLLocalDefault(t *testing.T) {
	cfg := NewConfig()
	url, err := cfg.CurrentURL()
	require.NoError(t, err)
	assert.Equal(t, "http://0.0.0.0:8181", url)
}

func TestListIncludesBuiltinsAndSortsByName(t *testing.T) {
	cfg := NewConfig()
	cfg.AddContext(Context{Name: "aaa-remote", URL: "http://10.0.0.1:8181"})
	list := cfg.List()
	names := make([]string, len(list))
	for i, info := range list {
		names[i] = info.Name
	}
	assert.Equal(t, []string{"aaa-remote", "local", "worker"}, names)
}
