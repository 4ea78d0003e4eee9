// Package config manages global termscript configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the global termscript configuration.
type Config struct {
	// DefaultTimeoutSeconds applies to waits in scripts that set no
	// timeout of their own.
	DefaultTimeoutSeconds int `json:"default_timeout_seconds,omitempty"`

	// TerminalCols and TerminalRows set the PTY size for scripts that
	// declare none.
	TerminalCols uint16 `json:"terminal_cols,omitempty"`
	TerminalRows uint16 `json:"terminal_rows,omitempty"`

	// HistoryEnabled records completed runs to the local database.
	HistoryEnabled bool `json:"history_enabled"`

	// HistoryLimit caps how many runs `termscript history` lists.
	HistoryLimit int `json:"history_limit,omitempty"`

	// WatchDebounceMs is the quiet period after a file change before
	// watch mode re-runs a script.
	WatchDebounceMs int `json:"watch_debounce_ms,omitempty"`

	// SSHIdentityFile is the private key used for remote targets.
	SSHIdentityFile string `json:"ssh_identity_file,omitempty"`

	// SSHInsecureHostKey skips host key verification for remote targets.
	SSHInsecureHostKey bool `json:"ssh_insecure_host_key,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeoutSeconds: 10,
		TerminalCols:          80,
		TerminalRows:          24,
		HistoryEnabled:        true,
		HistoryLimit:          50,
		WatchDebounceMs:       300,
	}
}

// DefaultTimeout returns the configured default wait timeout.
func (c *Config) DefaultTimeout() time.Duration {
	if c.DefaultTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// WatchDebounce returns the configured watch-mode debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	if c.WatchDebounceMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// ConfigPath returns the path to the config file.
// Falls back to the current directory if the home directory cannot be
// determined.
func ConfigPath() string {
	if home := os.Getenv("TERMSCRIPT_HOME"); home != "" {
		return filepath.Join(home, "config.json")
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "termscript", "config.json")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "termscript", "config.json")
	}
	return filepath.Join(homeDir, ".config", "termscript", "config.json")
}

// Load reads the configuration from disk. A missing file yields the
// defaults.
func Load() (*Config, error) {
	return loadFrom(ConfigPath())
}

func loadFrom(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	return c.saveTo(ConfigPath())
}

func (c *Config) saveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp config file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp config file: %w", err)
	}
	return nil
}
