// Package storage provides the two key-value tiers memos live in: a local tier
// that holds the full data and a sync tier that only ever receives the
// metadata backup and enforces a per-item size quota.
package storage

import (
	"context"
	"encoding/json"

	"github.com/hpungsan/webmemo/internal/db"
	"github.com/hpungsan/webmemo/internal/errors"
)

// Tier is a JSON key-value store.
type Tier interface {
	// Get returns the raw JSON stored under each key. Missing keys are absent.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set writes every item atomically. Values are marshaled to JSON.
	Set(ctx context.Context, items map[string]any) error
	// Usage lists stored keys and their sizes, largest first.
	Usage(ctx context.Context) ([]db.KeyStat, error)
	Close() error
}

// Load decodes key from tier into out. It reports false when the key is absent.
func Load(ctx context.Context, tier Tier, key string, out any) (bool, error) {
	raw, err := tier.Get(ctx, key)
	if err != nil {
		return false, err
	}
	v, ok := raw[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// encode marshals every item and enforces quota (0 disables the check).
// Item size is len(key) + len(JSON value).
func encode(items map[string]any, quota int) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for k, v := range items {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if size := len(k) + len(b); quota > 0 && size > quota {
			return nil, errors.NewStorageQuotaExceeded(k, size, quota)
		}
		out[k] = string(b)
	}
	return out, nil
}
