package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// These tests touch global viper state, so none of them run in parallel.

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledgergate.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	resetViper(t)

	path := writeConfigFile(t, `
server:
  http_addr: "127.0.0.1:9090"
  log_level: "debug"
rate_limit:
  capacity: 10
  refill_rate: 5
  interval: "30s"
auth:
  resolver: "static"
  sessions:
    - token_hash: "sha256:0f4a1f4f44b8973985a7cb99e3a94a22b928b2b31f086c2afd5055b0a227e4f0"
      principal_id: "u-1"
      name: "Test User"
      roles: ["user"]
`)
	InitViper(path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.RateLimit.Capacity != 10 || cfg.RateLimit.RefillRate != 5 || cfg.RateLimit.Interval != "30s" {
		t.Errorf("rate limit = %d/%d/%s", cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate, cfg.RateLimit.Interval)
	}
	if len(cfg.Auth.Sessions) != 1 || cfg.Auth.Sessions[0].PrincipalID != "u-1" {
		t.Errorf("Sessions = %+v", cfg.Auth.Sessions)
	}
	// Unset keys fall back to defaults.
	if cfg.Server.SessionCookie != "__session" {
		t.Errorf("SessionCookie = %q, want default", cfg.Server.SessionCookie)
	}
	if ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", ConfigFileUsed(), path)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	resetViper(t)

	InitViper(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	// A missing explicit file is a hard error only when it was explicit;
	// LoadConfigRaw surfaces it.
	if _, err := LoadConfigRaw(); err == nil {
		t.Fatal("LoadConfigRaw() expected error for missing explicit file")
	}
}

func TestLoadConfig_NoFileAnywhere(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	InitViper("")

	cfg, err := LoadConfigRaw()
	if err != nil {
		t.Fatalf("LoadConfigRaw() error: %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want default", cfg.Server.HTTPAddr)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	resetViper(t)

	t.Setenv("LEDGERGATE_RATE_LIMIT_CAPACITY", "7")
	t.Setenv("LEDGERGATE_SHIELD_MODE", "observe")

	path := writeConfigFile(t, `
rate_limit:
  capacity: 30
`)
	InitViper(path)

	cfg, err := LoadConfigRaw()
	if err != nil {
		t.Fatalf("LoadConfigRaw() error: %v", err)
	}
	if cfg.RateLimit.Capacity != 7 {
		t.Errorf("Capacity = %d, want env override 7", cfg.RateLimit.Capacity)
	}
	if cfg.Shield.Mode != "observe" {
		t.Errorf("Shield.Mode = %q, want env override observe", cfg.Shield.Mode)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	resetViper(t)

	path := writeConfigFile(t, "server: [unclosed")
	InitViper(path)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error for invalid YAML")
	}
}

func TestFindConfigFileInPaths(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	if got := findConfigFileInPaths([]string{dir}); got != "" {
		t.Errorf("findConfigFileInPaths = %q, want empty", got)
	}

	path := filepath.Join(dir, "ledgergate.yml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := findConfigFileInPaths([]string{dir}); got != path {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, path)
	}
}
