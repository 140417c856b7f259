package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unsetEnv clears key for the duration of the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	unsetEnv(t, EnvAPIKey)
	unsetEnv(t, EnvURL)
	path := writeConfig(t, t.TempDir(), `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
compilatio:
  url: "https://compilatio.example.test"
  api_key: "file-key"
  timeout: 10s
analysis:
  auto_start: true
  sync_interval: 2m
plugin:
  host_version: "4.1"
  cron_frequency: 15
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Compilatio.URL != "https://compilatio.example.test" || cfg.Compilatio.APIKey != "file-key" {
		t.Errorf("compilatio = %+v", cfg.Compilatio)
	}
	if cfg.Compilatio.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Compilatio.Timeout)
	}
	if !cfg.Analysis.AutoStart || cfg.Analysis.SyncInterval != 2*time.Minute {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Plugin.HostVersion != "4.1" || cfg.Plugin.CronFrequency != 15 {
		t.Errorf("plugin = %+v", cfg.Plugin)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
debug: true
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
storage:
  database_path: "./data/db/ledger.db"
watch:
  inbox: "./inbox"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "ledger.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantInbox := filepath.Join(dir, "inbox")
	if cfg.Watch.Inbox != wantInbox {
		t.Errorf("inbox = %s, want %s", cfg.Watch.Inbox, wantInbox)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvURL, "http://localhost:9999")
	path := writeConfig(t, t.TempDir(), `
compilatio:
  url: "https://file.example.test"
  api_key: "file-key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Compilatio.APIKey != "env-key" || cfg.Compilatio.URL != "http://localhost:9999" {
		t.Errorf("compilatio = %+v", cfg.Compilatio)
	}
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	unsetEnv(t, EnvAPIKey)
	unsetEnv(t, EnvURL)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("COMPILATIO_API_KEY=dotenv-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "debug: false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Compilatio.APIKey != "dotenv-key" {
		t.Errorf("api key = %q, want value from .env", cfg.Compilatio.APIKey)
	}
	if !cfg.Compilatio.Configured() {
		t.Error("expected configured compilatio section")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeConfig(t, t.TempDir(), "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Compilatio.URL != "https://app.compilatio.net" {
		t.Errorf("default url: got %s", cfg.Compilatio.URL)
	}
	if cfg.Compilatio.Configured() {
		t.Error("no api key by default")
	}
	if cfg.Analysis.AutoStart {
		t.Error("auto_start should default to false")
	}
	if cfg.Analysis.SyncInterval != 5*time.Minute {
		t.Errorf("sync interval: got %v", cfg.Analysis.SyncInterval)
	}
	if cfg.Plugin.CronFrequency != 5 {
		t.Errorf("cron frequency should follow sync interval, got %d", cfg.Plugin.CronFrequency)
	}
	if cfg.Plugin.RuntimeVersion == "" || cfg.Plugin.Language != "en" {
		t.Errorf("plugin = %+v", cfg.Plugin)
	}
	if len(cfg.Watch.Extensions) == 0 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_ShortSyncInterval(t *testing.T) {
	cfg := &Config{Analysis: AnalysisConfig{SyncInterval: 20 * time.Second}}
	ApplyDefaults(cfg)
	if cfg.Plugin.CronFrequency != 1 {
		t.Errorf("cron frequency = %d, want 1", cfg.Plugin.CronFrequency)
	}
}

func TestSave(t *testing.T) {
	unsetEnv(t, EnvAPIKey)
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:     ServerConfig{Host: "localhost", Port: 9090},
		Storage:    StorageConfig{DatabasePath: "/tmp/db"},
		Compilatio: CompilatioConfig{URL: "https://app.compilatio.net", APIKey: "secret"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Compilatio.APIKey != "" {
		t.Error("api key must not be written to the config file")
	}
	if cfg.Compilatio.APIKey != "secret" {
		t.Error("Save must not modify its argument")
	}
}

func TestDefault(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	unsetEnv(t, EnvURL)
	cfg := Default()
	if cfg.Compilatio.APIKey != "env-key" || !cfg.Compilatio.Configured() {
		t.Errorf("api key = %q", cfg.Compilatio.APIKey)
	}
	if cfg.Compilatio.URL != "https://app.compilatio.net" || cfg.Server.Port != 8080 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
