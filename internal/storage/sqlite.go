package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/hpungsan/webmemo/internal/db"
)

// SQLiteTier stores items in the kv table of a database opened with db.Init.
type SQLiteTier struct {
	db    *sql.DB
	quota int
}

// NewSQLiteTier wraps database. quota is the per-item limit in bytes; 0 means unlimited.
func NewSQLiteTier(database *sql.DB, quota int) *SQLiteTier {
	return &SQLiteTier{db: database, quota: quota}
}

func (t *SQLiteTier) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	values, err := db.GetValues(ctx, t.db, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

func (t *SQLiteTier) Set(ctx context.Context, items map[string]any) error {
	values, err := encode(items, t.quota)
	if err != nil {
		return err
	}
	return db.SetValues(ctx, t.db, values)
}

func (t *SQLiteTier) Usage(ctx context.Context) ([]db.KeyStat, error) {
	return db.Stats(ctx, t.db)
}

func (t *SQLiteTier) Close() error {
	return t.db.Close()
}
