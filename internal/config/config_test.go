package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefault(t *testing.T) {
	cfg := GenerateDefault()

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, 750, cfg.DebounceMs)
	assert.Equal(t, ".genctl/events", cfg.EventLogDir)
}

func TestDebounceDelay(t *testing.T) {
	cfg := GenerateDefault()
	assert.Equal(t, 750*time.Millisecond, cfg.DebounceDelay())

	cfg.DebounceMs = 200
	assert.Equal(t, 200*time.Millisecond, cfg.DebounceDelay())

	cfg.DebounceMs = 0
	assert.Equal(t, 750*time.Millisecond, cfg.DebounceDelay())
}

func TestResolveEventLogDir(t *testing.T) {
	// A minimal config that only sets the required fields still needs a
	// usable capture directory.
	cfg := &Config{Version: "1.0", ServerURL: "http://localhost:8000"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ".genctl/events", cfg.ResolveEventLogDir())

	cfg.EventLogDir = "logs/runs"
	assert.Equal(t, "logs/runs", cfg.ResolveEventLogDir())
}

func TestResolveToken(t *testing.T) {
	cfg := GenerateDefault()
	cfg.Token = "from-file"

	t.Setenv("GENCTL_TOKEN", "")
	assert.Equal(t, "from-file", cfg.ResolveToken())

	t.Setenv("GENCTL_TOKEN", "from-env")
	assert.Equal(t, "from-env", cfg.ResolveToken())
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GenerateDefault()
	err := cfg.Validate()
	assert.NoError(t, err, "Default config should be valid")
}

func TestValidate_MissingVersion(t *testing.T) {
	cfg := GenerateDefault()
	cfg.Version = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestValidate_MissingServerURL(t *testing.T) {
	cfg := GenerateDefault()
	cfg.ServerURL = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server_url")
}

func TestValidate_ServerURLWithoutScheme(t *testing.T) {
	cfg := GenerateDefault()
	cfg.ServerURL = "localhost:8000"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server_url")
}

func TestValidate_UnsupportedScheme(t *testing.T) {
	cfg := GenerateDefault()
	cfg.ServerURL = "ftp://example.com"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestValidate_NegativeDebounce(t *testing.T) {
	cfg := GenerateDefault()
	cfg.DebounceMs = -1
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "debounce_ms")
}

func TestLoadFromFile_NonExistent(t *testing.T) {
	cfg, err := LoadFromFile("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	invalidFile := filepath.Join(tmpDir, "invalid.json")
	err := os.WriteFile(invalidFile, []byte("{invalid json"), 0600)
	require.NoError(t, err)

	cfg, err := LoadFromFile(invalidFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestSaveToFile(t *testing.T) {
	cfg := GenerateDefault()
	cfg.Token = "secret-token"
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, DefaultFileName)

	err := cfg.SaveToFile(configPath)
	require.NoError(t, err)

	// Verify file exists and can be loaded
	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, cfg.Version, loaded.Version)
	assert.Equal(t, cfg.ServerURL, loaded.ServerURL)
	assert.Equal(t, cfg.Token, loaded.Token)

	// Verify file permissions (should be 0600)
	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
