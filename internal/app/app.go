// Package app wires the storage tiers, model client, capture pipeline and
// chat service into one value shared by the CLI, MCP server and HTTP server.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/capture"
	"github.com/hpungsan/webmemo/internal/chat"
	"github.com/hpungsan/webmemo/internal/config"
	"github.com/hpungsan/webmemo/internal/db"
	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/llm"
	"github.com/hpungsan/webmemo/internal/ops"
	"github.com/hpungsan/webmemo/internal/storage"
)

// EnvAPIKey seeds the model credential when none is stored.
const EnvAPIKey = "WEBMEMO_API_KEY"

// redisPrefix namespaces sync keys in a shared Redis.
const redisPrefix = "webmemo:"

// App is an opened webmemo instance.
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	Bus     *events.Bus
	Store   *ops.Store
	Session *llm.Session
	Model   *llm.Client
	Capture *capture.Pipeline
	Chat    *chat.Service

	local storage.Tier
	sync  storage.Tier
}

// Open opens (creating if needed) the tiers under baseDir, restores from the
// backup on a cold start and seeds the tag catalog.
func Open(ctx context.Context, baseDir string, cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	localDB, err := db.Init(baseDir, db.LocalFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local database: %w", err)
	}
	db.ConfigurePool(localDB, cfg)
	local := storage.NewSQLiteTier(localDB, 0)

	syncTier, err := openSync(ctx, baseDir, cfg)
	if err != nil {
		local.Close()
		return nil, err
	}

	a := &App{
		Config: cfg,
		Log:    log,
		Bus:    events.NewBus(log),
		local:  local,
		sync:   syncTier,
	}
	a.Store = ops.New(local, syncTier, ops.Options{
		AutoBackup: !cfg.DisableAutoBackup,
		Bus:        a.Bus,
		Logger:     log,
	})

	if _, err := a.Store.RestoreFromBackup(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to restore from backup: %w", err)
	}
	if _, err := a.Store.InitializeTags(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize tags: %w", err)
	}

	key, err := a.Store.Credential(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if key == "" {
		key = strings.TrimSpace(os.Getenv(EnvAPIKey))
	}

	a.Session = llm.NewSession(key)
	a.Model = llm.New(a.Session, llm.OptionsFromConfig(cfg), log)
	a.Capture = capture.New(a.Model, a.Store, a.Bus, log)
	a.Chat = chat.NewService(a.Model, a.Store, log)
	return a, nil
}

func openSync(ctx context.Context, baseDir string, cfg *config.Config) (storage.Tier, error) {
	switch cfg.SyncBackend {
	case config.SyncBackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.NewInvalidRequest("redis_addr is required when sync_backend is redis")
		}
		t, err := storage.NewRedisTier(ctx, cfg.RedisAddr, redisPrefix, cfg.SyncQuotaBytesPerItem)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return t, nil
	case config.SyncBackendSQLite, "":
		syncDB, err := db.Init(baseDir, db.SyncFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sync database: %w", err)
		}
		return storage.NewSQLiteTier(syncDB, cfg.SyncQuotaBytesPerItem), nil
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown sync_backend %q", cfg.SyncBackend))
	}
}

// SetAPIKey stores key and makes it the active credential.
func (a *App) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := a.Store.SetCredential(ctx, key); err != nil {
		return err
	}
	a.Session.SetAPIKey(key)
	a.Log.Info("model credential updated", zap.Bool("set", key != ""))
	return nil
}

// Retag is the re-tag entry point: tag must be in the catalog or Untagged.
func (a *App) Retag(ctx context.Context, memoID, tag string) (*ops.RetagOutput, error) {
	return a.Store.RetagMemoChecked(ctx, memoID, tag)
}

// TierUsage is the stored size of every key in one tier.
type TierUsage struct {
	Tier       string       `json:"tier"`
	TotalBytes int          `json:"totalBytes"`
	Items      []db.KeyStat `json:"items"`
	// QuotaBytesPerItem is 0 for the unlimited local tier
	QuotaBytesPerItem int `json:"quotaBytesPerItem"`
}

// Usage reports the local tier, then the sync tier.
func (a *App) Usage(ctx context.Context) ([]TierUsage, error) {
	tiers := []struct {
		name  string
		tier  storage.Tier
		quota int
	}{
		{"local", a.local, 0},
		{"sync", a.sync, a.Config.SyncQuotaBytesPerItem},
	}
	out := make([]TierUsage, 0, len(tiers))
	for _, t := range tiers {
		items, err := t.tier.Usage(ctx)
		if err != nil {
			return nil, err
		}
		u := TierUsage{Tier: t.name, Items: items, QuotaBytesPerItem: t.quota}
		for _, it := range items {
			u.TotalBytes += it.SizeBytes
		}
		out = append(out, u)
	}
	return out, nil
}

// Close closes both tiers.
func (a *App) Close() error {
	var first error
	for _, t := range []storage.Tier{a.local, a.sync} {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
