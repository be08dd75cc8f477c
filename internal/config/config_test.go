package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PLANETARY_CONFIG",
		"PLANETARY_DB_PATH",
		"PLANETARY_IDENTITY",
		"PLANETARY_REMOTE_URL",
		"PLANETARY_PAGE_SIZE",
		"PLANETARY_SERVER_ADDR",
		"PLANETARY_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.DBPath != defaultDBPath {
		t.Fatalf("unexpected DB path: %s", cfg.DBPath)
	}
	if cfg.ServerAddr != defaultServerAddr {
		t.Fatalf("unexpected server addr: %s", cfg.ServerAddr)
	}
	if cfg.PageSize != defaultPageSize {
		t.Fatalf("unexpected page size: %d", cfg.PageSize)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
	if err := cfg.RequireIdentity(); err == nil {
		t.Fatal("expected missing identity error")
	}
}

func TestLoadFromEnv_ReadsVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLANETARY_DB_PATH", "/tmp/view.db")
	t.Setenv("PLANETARY_IDENTITY", "@me=.ed25519")
	t.Setenv("PLANETARY_PAGE_SIZE", "25")
	t.Setenv("PLANETARY_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.DBPath != "/tmp/view.db" || cfg.Identity != "@me=.ed25519" || cfg.PageSize != 25 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.RequireIdentity(); err != nil {
		t.Fatalf("unexpected identity error: %v", err)
	}
}

func TestLoadFromEnv_InvalidPageSize(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLANETARY_PAGE_SIZE", "many")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for invalid page size")
	}
}

func TestLoad_FileOverlaysEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLANETARY_DB_PATH", "/from/env.db")
	t.Setenv("PLANETARY_IDENTITY", "@env=.ed25519")

	path := filepath.Join(t.TempDir(), "planetary.yaml")
	data := "identity: \"@file=.ed25519\"\nremote_url: http://localhost:8008\npage_size: 20\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PLANETARY_CONFIG", path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.Identity != "@file=.ed25519" {
		t.Fatalf("expected file identity, got %s", cfg.Identity)
	}
	if cfg.DBPath != "/from/env.db" {
		t.Fatalf("expected env DB path to survive, got %s", cfg.DBPath)
	}
	if cfg.RemoteURL != "http://localhost:8008" || cfg.PageSize != 20 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("page_size: [1, 2"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestLoad_RejectsPageLargerThanRemoteLimit(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planetary.yaml")
	if err := os.WriteFile(path, []byte("remote_url: http://localhost:8008\npage_size: 300\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "at most 200") {
		t.Fatalf("expected page size error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{DBPath: "planetary.db", PageSize: 50, ServerAddr: ":8008", LogLevel: "info"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	largest := valid
	largest.PageSize = 200
	if err := largest.Validate(); err != nil {
		t.Fatalf("expected the largest remote page to be valid: %v", err)
	}

	tests := map[string]func(*Config){
		"trailing slash":   func(c *Config) { c.RemoteURL = "http://localhost:8008/" },
		"bad identity":     func(c *Config) { c.Identity = "me" },
		"zero page size":   func(c *Config) { c.PageSize = 0 },
		"page too large":   func(c *Config) { c.PageSize = 300 },
		"unknown level":    func(c *Config) { c.LogLevel = "loud" },
		"missing db path":  func(c *Config) { c.DBPath = "" },
		"missing listener": func(c *Config) { c.ServerAddr = "" },
	}
	for name, mutate := range tests {
		cfg := valid
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
