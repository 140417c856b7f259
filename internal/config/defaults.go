package config

import (
	"runtime"
	"time"
)

// Version is the connector version reported to the service.
const Version = "0.1.0"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/compilatio/data/db/ledger.db"
	}
	if cfg.Compilatio.URL == "" {
		cfg.Compilatio.URL = "https://app.compilatio.net"
	}
	if cfg.Compilatio.Timeout == 0 {
		cfg.Compilatio.Timeout = 60 * time.Second
	}
	if cfg.Analysis.SyncInterval == 0 {
		cfg.Analysis.SyncInterval = 5 * time.Minute
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".pdf", ".doc", ".docx", ".odt", ".rtf", ".html"}
	}
	if cfg.Plugin.RuntimeVersion == "" {
		cfg.Plugin.RuntimeVersion = runtime.Version()
	}
	if cfg.Plugin.HostVersion == "" {
		cfg.Plugin.HostVersion = Version
	}
	if cfg.Plugin.PluginVersion == "" {
		cfg.Plugin.PluginVersion = Version
	}
	if cfg.Plugin.Language == "" {
		cfg.Plugin.Language = "en"
	}
	if cfg.Plugin.CronFrequency == 0 {
		cfg.Plugin.CronFrequency = int(cfg.Analysis.SyncInterval / time.Minute)
		if cfg.Plugin.CronFrequency == 0 {
			cfg.Plugin.CronFrequency = 1
		}
	}
}
