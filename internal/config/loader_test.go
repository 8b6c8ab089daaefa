package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withEnv replaces lookupEnv for the duration of the test.
func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	original := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = original })
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	withEnv(t, nil)
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://recipes.ddev.site", cfg.Drupal.BaseURL)
	assert.Equal(t, "https://recipes.ddev.site/jsonapi", cfg.Drupal.ResolvedAPIURL())
	assert.Equal(t, DefaultScope, cfg.OAuth.Scope)
	assert.Equal(t, 300*time.Second, cfg.OAuth.ExpiryBuffer())
	assert.Equal(t, BackendFile, cfg.Credentials.Backend)
	assert.Equal(t, dir, cfg.Credentials.Dir)
}

func TestLoadConfig_FileOverride(t *testing.T) {
	withEnv(t, nil)
	dir := t.TempDir()

	content := `
drupal:
  baseURL: https://cms.example.com/
oauth:
  clientID: recipes-cli
  refreshTokenTTL: 48h
credentials:
  backend: memory
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://cms.example.com", cfg.Drupal.BaseURL)
	assert.Equal(t, "recipes-cli", cfg.OAuth.ClientID)
	assert.Equal(t, 48*time.Hour, cfg.OAuth.RefreshTokenTTL)
	assert.Equal(t, BackendMemory, cfg.Credentials.Backend)
	// untouched defaults survive
	assert.Equal(t, DefaultCallbackPort, cfg.OAuth.CallbackPort)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	withEnv(t, map[string]string{
		"DRUPAL_BASE_URL":      "https://env.example.com",
		"DRUPAL_CLIENT_ID":     "from-env",
		"DRUPAL_CLIENT_SECRET": "s3cret",
		"RECIPEBOX_STORE":      "redis",
		"RECIPEBOX_REDIS_ADDR": "redis:6379",
	})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("oauth:\n  clientID: from-file\n"), 0600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Drupal.BaseURL)
	assert.Equal(t, "from-env", cfg.OAuth.ClientID)
	assert.Equal(t, "s3cret", cfg.OAuth.ClientSecret)
	assert.Equal(t, BackendRedis, cfg.Credentials.Backend)
	assert.Equal(t, "redis:6379", cfg.Credentials.Redis.Addr)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	withEnv(t, nil)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("drupal: [unterminated"), 0600))

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "parse", cfgErr.ErrorType)
}

func TestLoadConfig_InvalidCallbackPortEnv(t *testing.T) {
	withEnv(t, map[string]string{"RECIPEBOX_CALLBACK_PORT": "not-a-port"})

	_, err := LoadConfig(t.TempDir())
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "env", cfgErr.ErrorType)
}

func TestSaveAndReload(t *testing.T) {
	withEnv(t, nil)
	dir := filepath.Join(t.TempDir(), "nested")

	cfg := GetDefaultConfig()
	cfg.OAuth.ClientID = "saved-client"
	require.NoError(t, Save(dir, cfg))

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "saved-client", loaded.OAuth.ClientID)
}
