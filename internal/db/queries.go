package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/webmemo/internal/errors"
)

// GetValues returns the stored values for keys. Missing keys are absent from the map.
func GetValues(ctx context.Context, db *sql.DB, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := db.QueryContext(ctx, "SELECT key, value FROM kv WHERE key IN ("+placeholders+")", args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errors.NewInternal(err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// SetValues upserts every key in a single transaction: either all values are written or none.
func SetValues(ctx context.Context, db *sql.DB, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kv (key, value, size_bytes, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		  value = excluded.value,
		  size_bytes = excluded.size_bytes,
		  updated_at = excluded.updated_at
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, k, v, len(k)+len(v), now); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// KeyStat describes one stored item.
type KeyStat struct {
	Key       string `json:"key"`
	SizeBytes int    `json:"size_bytes"`
	UpdatedAt int64  `json:"updated_at"`
}

// Stats lists every stored key with its size, largest first.
func Stats(ctx context.Context, db *sql.DB) ([]KeyStat, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, size_bytes, updated_at FROM kv ORDER BY size_bytes DESC, key")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	stats := make([]KeyStat, 0)
	for rows.Next() {
		var s KeyStat
		if err := rows.Scan(&s.Key, &s.SizeBytes, &s.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return stats, nil
}
