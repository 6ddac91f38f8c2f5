package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	require.NoError(t, os.WriteFile(path, []byte("# a comment\nAPI_KEY=\"sk-123\"\n\nOTHER=plain\n"), 0o600))

	comp := &composition.Composition{Secrets: map[string]composition.SecretSource{
		"openai": {Kind: composition.SecretSourceEnvFile, Name: "openai", Path: path, Variables: []string{"API_KEY"}},
	}}
	store, err := Load(context.Background(), comp)
	require.NoError(t, err)

	v, ok := store.Resolve("openai", "API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "sk-123", v)

	_, ok = store.Resolve("openai", "OTHER")
	assert.False(t, ok, "allow-list should exclude OTHER")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("MY_SECRET_VAR", "value-1")
	comp := &composition.Composition{Secrets: map[string]composition.SecretSource{
		"s": {Kind: composition.SecretSourceEnv, Name: "s", Variable: "MY_SECRET_VAR"},
	}}
	store, err := Load(context.Background(), comp)
	require.NoError(t, err)
	v, ok := store.Resolve("s", "MY_SECRET_VAR")
	assert.True(t, ok)
	assert.Equal(t, "value-1", v)
}

func TestLoadEnvMissingIsFatal(t *testing.T) {
	comp := &composition.Composition{Secrets: map[string]composition.SecretSource{
		"s": {Kind: composition.SecretSourceEnv, Name: "s", Variable: "DEFINITELY_NOT_SET_XYZ"},
	}}
	_, err := Load(context.Background(), comp)
	require.Error(t, err)
}

func TestLoadVault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/openai", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"data": {"api_key": "sk-vault"}}}`))
	}))
	defer srv.Close()

	t.Setenv("VAULT_TOKEN", "test-token")
	comp := &composition.Composition{Secrets: map[string]composition.SecretSource{
		"v": {Kind: composition.SecretSourceVault, Name: "v", Address: srv.URL, VaultPath: "secret/data/openai", TokenEnv: "VAULT_TOKEN"},
	}}
	store, err := Load(context.Background(), comp)
	require.NoError(t, err)
	v, ok := store.Resolve("v", "api_key")
	assert.True(t, ok)
	assert.Equal(t, "sk-vault", v)
}
