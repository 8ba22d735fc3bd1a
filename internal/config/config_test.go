package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://world.openfoodfacts.org/api/v2", cfg.Lookup.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, "device", cfg.Scanner.Type)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFileValues(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": "9090", "static_dir": "./public"},
		"lookup": {"base_url": "http://localhost:7000/api/v2", "timeout_ms": 250},
		"scanner": {"type": "google", "config_path": "config/google.json"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "./public", cfg.Server.StaticDir)
	assert.Equal(t, "http://localhost:7000/api/v2", cfg.Lookup.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout())
	assert.Equal(t, "google", cfg.Scanner.Type)
	// untouched sections keep their defaults
	assert.Equal(t, "nutriscan/1.0", cfg.Lookup.UserAgent)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"server": {"port": "9090"}}`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("OFF_TIMEOUT_MS", "1500")
	t.Setenv("OTEL_ENABLED", "yes")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 1500, cfg.Lookup.TimeoutMs)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad json", body: `{"server":`},
		{name: "unknown scanner", body: `{"scanner": {"type": "laser"}}`},
		{name: "bad base url", body: `{"lookup": {"base_url": "not a url"}}`},
		{name: "non numeric port", body: `{"server": {"port": "http"}}`},
		{name: "zero timeout", body: `{"lookup": {"timeout_ms": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestGetConfigPathPrefersEnv(t *testing.T) {
	t.Setenv("NUTRISCAN_CONFIG", "/etc/nutriscan.json")
	assert.Equal(t, "/etc/nutriscan.json", GetConfigPath())
}
