package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Model != def.Model {
		t.Fatalf("Model = %q, want %q", cfg.Model, def.Model)
	}
	if cfg.MaxTokens != 4096 {
		t.Fatalf("MaxTokens = %d, want 4096", cfg.MaxTokens)
	}
	if cfg.SyncBackend != SyncBackendSQLite {
		t.Fatalf("SyncBackend = %q, want %q", cfg.SyncBackend, SyncBackendSQLite)
	}
	if cfg.SyncQuotaBytesPerItem != 8192 {
		t.Fatalf("SyncQuotaBytesPerItem = %d, want 8192", cfg.SyncQuotaBytesPerItem)
	}
	if cfg.RequestTimeout() != 120*time.Second {
		t.Fatalf("RequestTimeout() = %v, want 120s", cfg.RequestTimeout())
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	body := `{"model": "claude-test", "max_tokens": 1024, "api_base_url": "http://localhost:9999/v1/", "sync_backend": "Redis", "redis_addr": "localhost:6379"}`
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model != "claude-test" {
		t.Errorf("Model = %q, want claude-test", cfg.Model)
	}
	if cfg.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", cfg.MaxTokens)
	}
	if cfg.APIBaseURL != "http://localhost:9999/v1" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.SyncBackend != SyncBackendRedis {
		t.Errorf("SyncBackend = %q, want %q", cfg.SyncBackend, SyncBackendRedis)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	// Untouched fields keep defaults
	if cfg.APIVersion != "2023-06-01" {
		t.Errorf("APIVersion = %q, want default", cfg.APIVersion)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["memo_delete", " tag_delete ", ""]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools = %v, want 2 entries", cfg.DisabledTools)
	}
	if cfg.DisabledTools[1] != "tag_delete" {
		t.Errorf("DisabledTools[1] = %q, want trimmed tag_delete", cfg.DisabledTools[1])
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{Model: "a", MaxTokens: 100, RequestTimeoutSeconds: 10}
	overlay := &Config{Model: "b"}

	result := Merge(base, overlay)
	if result.Model != "b" {
		t.Errorf("Model = %q, want b", result.Model)
	}
	if result.MaxTokens != 100 {
		t.Errorf("MaxTokens = %d, want 100 (from base)", result.MaxTokens)
	}
	if result.RequestTimeoutSeconds != 10 {
		t.Errorf("RequestTimeoutSeconds = %d, want 10", result.RequestTimeoutSeconds)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{DisableAutoBackup: true}, &Config{})
	if !result.DisableAutoBackup {
		t.Error("DisableAutoBackup = false, want true from base")
	}

	result = Merge(&Config{}, &Config{Debug: true})
	if !result.Debug {
		t.Error("Debug = false, want true from overlay")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTypes: []string{"chat", "backup"}}
	overlay := &Config{DisabledTypes: []string{"backup", "tag"}}

	result := Merge(base, overlay)
	want := []string{"chat", "backup", "tag"}
	if len(result.DisabledTypes) != len(want) {
		t.Fatalf("DisabledTypes = %v, want %v", result.DisabledTypes, want)
	}
	for i := range want {
		if result.DisabledTypes[i] != want[i] {
			t.Errorf("DisabledTypes[%d] = %q, want %q", i, result.DisabledTypes[i], want[i])
		}
	}
}

func TestMerge_EmptyArraysStayNil(t *testing.T) {
	result := Merge(&Config{}, &Config{DisabledTools: []string{"  "}})
	if result.DisabledTools != nil {
		t.Errorf("DisabledTools = %v, want nil", result.DisabledTools)
	}
}
