package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	// Load from a directory with no config file present.
	t.Chdir(t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, ".assetpulse/state.db", cfg.Storage.Path)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Events.BufferSize)
}

func TestLoader_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
storage:
  backend: json
  path: /tmp/pulse.json
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/pulse.json", cfg.Storage.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Unset values fall back to defaults.
	assert.Equal(t, "auto", cfg.Log.Format)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSETPULSE_LOG_LEVEL", "error")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestValidator_Valid(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NoError(t, NewValidator().Validate(cfg))
}

func TestValidator_Invalid(t *testing.T) {
	cfg := &Config{
		Log:     LogConfig{Level: "loud", Format: "auto"},
		Storage: StorageConfig{Backend: "etcd", Path: ""},
		Server:  ServerConfig{Port: 0, TimeoutSecs: 0},
		Events:  EventsConfig{BufferSize: 0},
	}

	err := NewValidator().Validate(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.GreaterOrEqual(t, len(verrs), 5)
}
