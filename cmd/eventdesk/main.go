package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.eventdesk/config.toml.
type Config struct {
	Default ConfigDefault `toml:"default"`
	Monitor ConfigMonitor `toml:"monitor"`
}

// ConfigDefault holds general client settings.
type ConfigDefault struct {
	ServerURL  string `toml:"server_url"`
	StorageDir string `toml:"storage_dir"`
}

// ConfigMonitor holds connectivity probe settings.
type ConfigMonitor struct {
	ProbeIntervalSeconds int `toml:"probe_interval_seconds"`
	ProbeTimeoutSeconds  int `toml:"probe_timeout_seconds"`
}

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.eventdesk, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".eventdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// configPath returns the full path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads and parses the config file.
// If the file does not exist, it returns a zero-value Config.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// saveConfig writes the config struct back to disk as TOML.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// setConfigValue sets a config field using dot notation (e.g. "default.server_url").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. default.server_url)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "default":
		switch field {
		case "server_url":
			cfg.Default.ServerURL = value
		case "storage_dir":
			cfg.Default.StorageDir = value
		default:
			return fmt.Errorf("unknown field %q in section [default]", field)
		}
	case "monitor":
		switch field {
		case "probe_interval_seconds":
			n, err := parsePositiveInt(value)
			if err != nil {
				return err
			}
			cfg.Monitor.ProbeIntervalSeconds = n
		case "probe_timeout_seconds":
			n, err := parsePositiveInt(value)
			if err != nil {
				return err
			}
			cfg.Monitor.ProbeTimeoutSeconds = n
		default:
			return fmt.Errorf("unknown field %q in section [monitor]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: default, monitor)", section)
	}
	return nil
}

func parsePositiveInt(value string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 1 {
		return 0, fmt.Errorf("value must be a positive integer, got %q", value)
	}
	return n, nil
}

// ============================================================================
// Root command
// ============================================================================

var rootCmd = &cobra.Command{
	Use:   "eventdesk",
	Short: "EventDesk calendar CLI",
	Long:  "Command-line interface for the EventDesk sporting event calendar.\nBrowse, create and manage events with offline support, or run the reference server.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
