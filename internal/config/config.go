package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

// DefaultFileName is the configuration file genctl looks for in the
// current directory.
const DefaultFileName = "genctl.json"

// Config represents the genctl.json configuration file
type Config struct {
	Version     string `json:"version"`
	ServerURL   string `json:"server_url"`
	Token       string `json:"token,omitempty"`
	DebounceMs  int    `json:"debounce_ms,omitempty"`
	EventLogDir string `json:"event_log_dir,omitempty"`
}

// GenerateDefault creates a new Config with default values
func GenerateDefault() *Config {
	return &Config{
		Version:     "1.0",
		ServerURL:   "http://localhost:8000",
		DebounceMs:  750,
		EventLogDir: ".genctl/events",
	}
}

// DebounceDelay returns the persistence debounce window, falling back
// to the default when unset.
func (c *Config) DebounceDelay() time.Duration {
	if c.DebounceMs <= 0 {
		return 750 * time.Millisecond
	}
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ResolveEventLogDir returns the directory for event capture logs,
// falling back to the default when unset.
func (c *Config) ResolveEventLogDir() string {
	if c.EventLogDir == "" {
		return ".genctl/events"
	}
	return c.EventLogDir
}

// ResolveToken returns the API token, preferring the GENCTL_TOKEN
// environment variable over the config file so tokens never have to be
// written to disk.
func (c *Config) ResolveToken() string {
	if tok := os.Getenv("GENCTL_TOKEN"); tok != "" {
		return tok
	}
	return c.Token
}

// Validate checks the configuration for errors and returns user-friendly error messages
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("configuration error: missing required field 'version'\n\nHint: Add a version field like:\n  \"version\": \"1.0\"")
	}

	if c.ServerURL == "" {
		return fmt.Errorf("configuration error: missing required field 'server_url'\n\nHint: Add the generation server address:\n  \"server_url\": \"http://localhost:8000\"")
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("configuration error: invalid 'server_url' value: %q\n\nHint: Use a full URL including the scheme:\n  \"server_url\": \"http://localhost:8000\"", c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("configuration error: unsupported scheme %q in 'server_url'\n\nHint: Only http and https are supported", u.Scheme)
	}

	if c.DebounceMs < 0 {
		return fmt.Errorf("configuration error: invalid 'debounce_ms' value: %d\n\nHint: The debounce window must be zero (use the default) or a positive number of milliseconds", c.DebounceMs)
	}

	return nil
}

// LoadFromFile loads a configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveToFile writes the configuration to a JSON file with 0600 permissions
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	// The file may hold a token, so keep it owner read/write only
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
