package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hpungsan/webmemo/internal/db"
	"github.com/hpungsan/webmemo/internal/errors"
)

// RedisTier stores items as plain string keys under a common prefix.
type RedisTier struct {
	rdb    *redis.Client
	prefix string
	quota  int
}

// NewRedisTier connects to addr and verifies the server is reachable.
func NewRedisTier(ctx context.Context, addr, prefix string, quota int) (*RedisTier, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.NewInternal(err)
	}
	return &RedisTier{rdb: rdb, prefix: prefix, quota: quota}, nil
}

func (t *RedisTier) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = t.prefix + k
	}
	vals, err := t.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = json.RawMessage(s)
		}
	}
	return out, nil
}

func (t *RedisTier) Set(ctx context.Context, items map[string]any) error {
	values, err := encode(items, t.quota)
	if err != nil {
		return err
	}
	_, err = t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, t.prefix+k, v, 0)
		}
		return nil
	})
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Usage reports sizes the same way the quota counts them. Redis keeps no
// write time, so UpdatedAt is zero.
func (t *RedisTier) Usage(ctx context.Context) ([]db.KeyStat, error) {
	stats := make([]db.KeyStat, 0)
	iter := t.rdb.Scan(ctx, 0, t.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		n, err := t.rdb.StrLen(ctx, full).Result()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		key := strings.TrimPrefix(full, t.prefix)
		stats = append(stats, db.KeyStat{Key: key, SizeBytes: len(key) + int(n)})
	}
	if err := iter.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].SizeBytes != stats[j].SizeBytes {
			return stats[i].SizeBytes > stats[j].SizeBytes
		}
		return stats[i].Key < stats[j].Key
	})
	return stats, nil
}

func (t *RedisTier) Close() error {
	return t.rdb.Close()
}
