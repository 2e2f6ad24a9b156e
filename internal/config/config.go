package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sync backends for the backup tier.
const (
	SyncBackendSQLite = "sqlite"
	SyncBackendRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	// Model is the provider model identifier used for capture and chat.
	Model string `json:"model"`

	// MaxTokens caps the length of each model response.
	MaxTokens int `json:"max_tokens"`

	// APIBaseURL is the provider endpoint prefix; requests go to APIBaseURL + "/messages".
	APIBaseURL string `json:"api_base_url"`

	// APIVersion is sent as the anthropic-version header.
	APIVersion string `json:"api_version"`

	// RequestTimeoutSeconds bounds every model call. Expiry is reported as a provider error.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// SyncBackend selects where the metadata backup lives: "sqlite" (sync.db next to
	// local.db) or "redis" (RedisAddr).
	SyncBackend string `json:"sync_backend"`

	// RedisAddr is host:port of the Redis server when SyncBackend is "redis".
	RedisAddr string `json:"redis_addr,omitempty"`

	// SyncQuotaBytesPerItem is the largest value (key + JSON) the sync tier accepts.
	// Writes above it fail with STORAGE_QUOTA_EXCEEDED.
	SyncQuotaBytesPerItem int `json:"sync_quota_bytes_per_item"`

	// DisableAutoBackup stops the metadata backup that otherwise follows every
	// write to the local tier. Backups can still be run on demand.
	DisableAutoBackup bool `json:"disable_auto_backup,omitempty"`

	// Debug switches logging to the development encoder at debug level.
	Debug bool `json:"debug,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "memo", "tag", "chat", "backup".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:                 "claude-3-5-sonnet-20241022",
		MaxTokens:             4096,
		APIBaseURL:            "https://api.anthropic.com/v1",
		APIVersion:            "2023-06-01",
		RequestTimeoutSeconds: 120,
		SyncBackend:           SyncBackendSQLite,
		SyncQuotaBytesPerItem: 8192,
	}
}

// RequestTimeout returns RequestTimeoutSeconds as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.webmemo.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Model = firstString(overlay.Model, base.Model)
	result.APIBaseURL = strings.TrimRight(firstString(overlay.APIBaseURL, base.APIBaseURL), "/")
	result.APIVersion = firstString(overlay.APIVersion, base.APIVersion)
	result.SyncBackend = strings.ToLower(firstString(overlay.SyncBackend, base.SyncBackend))
	result.RedisAddr = firstString(overlay.RedisAddr, base.RedisAddr)

	result.MaxTokens = firstInt(overlay.MaxTokens, base.MaxTokens)
	result.RequestTimeoutSeconds = firstInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds)
	result.SyncQuotaBytesPerItem = firstInt(overlay.SyncQuotaBytesPerItem, base.SyncQuotaBytesPerItem)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.DisableAutoBackup = base.DisableAutoBackup || overlay.DisableAutoBackup
	result.Debug = base.Debug || overlay.Debug

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstString(overlay, base string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
