// Package config provides configuration loading and structs for the Compilatio connector.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the file. They are also read from a .env file
// placed next to the config file.
const (
	EnvAPIKey = "COMPILATIO_API_KEY"
	EnvURL    = "COMPILATIO_URL"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Compilatio CompilatioConfig `yaml:"compilatio"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Watch      WatchConfig      `yaml:"watch"`
	Plugin     PluginConfig     `yaml:"plugin"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the ledger database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// CompilatioConfig holds the REST endpoint and credentials.
type CompilatioConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Configured reports whether an API key is available.
func (c CompilatioConfig) Configured() bool {
	return c.APIKey != ""
}

// AnalysisConfig controls what happens after an upload.
type AnalysisConfig struct {
	AutoStart    bool          `yaml:"auto_start"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// WatchConfig holds the submission inbox settings. Files are expected under
// <inbox>/<cm>/<userid>/.
type WatchConfig struct {
	Inbox      string   `yaml:"inbox"`
	Extensions []string `yaml:"extensions"`
}

// PluginConfig is the deployment description reported to the service.
type PluginConfig struct {
	RuntimeVersion string `yaml:"runtime_version"`
	HostVersion    string `yaml:"host_version"`
	PluginVersion  string `yaml:"plugin_version"`
	Language       string `yaml:"language"`
	CronFrequency  int    `yaml:"cron_frequency"`
}

// Load reads and parses the config file at path, applies environment overrides, expands
// paths, and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Watch.Inbox != "" {
		cfg.Watch.Inbox = expandPath(cfg.Watch.Inbox, configDir)
	}

	return &cfg, nil
}

// Default returns the defaults with environment overrides applied, for deployments
// that configure everything through the environment.
func Default() *Config {
	var cfg Config
	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path. The API key is never written; it belongs in the
// environment or the .env file.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Compilatio.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// loadDotEnv loads KEY=VALUE pairs from path without overriding variables that are
// already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.Compilatio.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		cfg.Compilatio.URL = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
