package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatalf("expected error for explicit missing file")
	}

	// Without an explicit path a missing file is fine; defaults apply.
	wd, _ := os.Getwd()
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8000" {
		t.Fatalf("unexpected default address %q", cfg.Server.Address)
	}
	if cfg.Retrieval.PerKindLimit != 10 || cfg.Retrieval.EvidenceBudget != 12000 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Sessions.Store != "inmemory" || cfg.Sessions.MaxSessions != 256 {
		t.Fatalf("unexpected session defaults: %+v", cfg.Sessions)
	}
	if cfg.Retrieval.AdapterTimeout != 25*time.Second {
		t.Fatalf("unexpected adapter timeout %s", cfg.Retrieval.AdapterTimeout)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"server": {"address": ":9000"},
		"retrieval": {"adapter_timeout": "90s", "global_timeout": "45s"},
		"sessions": {"store": "redis"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("file value not applied: %q", cfg.Server.Address)
	}
	if cfg.Sessions.Store != "redis" {
		t.Fatalf("expected redis store, got %q", cfg.Sessions.Store)
	}
	// Adapter timeout is clamped to the global timeout.
	if cfg.Retrieval.AdapterTimeout != cfg.Retrieval.GlobalTimeout {
		t.Fatalf("expected adapter timeout clamped, got %s > %s", cfg.Retrieval.AdapterTimeout, cfg.Retrieval.GlobalTimeout)
	}
}

func TestLoadConfigRejectsUnknownStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"sessions": {"store": "sqlite"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for unknown store")
	}
}

func TestSecretEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SERPER_API_KEY", "serper-test")
	t.Setenv("REDIS_PORT", "6380")

	wd, _ := os.Getwd()
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("OPENAI_API_KEY not applied")
	}
	if cfg.Sources.Web.SerperAPIKey != "serper-test" {
		t.Fatalf("SERPER_API_KEY not applied")
	}
	if cfg.Storage.Redis.Port != 6380 {
		t.Fatalf("REDIS_PORT not applied: %d", cfg.Storage.Redis.Port)
	}
}
