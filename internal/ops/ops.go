// Package ops implements the memo store, tag catalog, saved chats and the
// metadata backup on top of the two storage tiers.
//
// Every read-modify-write on the local tier runs under one mutex, so
// concurrent captures, deletes and re-tags never overwrite each other.
package ops

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
	"github.com/hpungsan/webmemo/internal/storage"
)

// Local tier keys.
const (
	KeyMemos  = "memos"
	KeyTags   = "tags"
	KeyChats  = "savedChats"
	KeyAPIKey = "anthropicApiKey"
)

// Sync tier keys.
const (
	KeyMemosMeta = "memos_meta"
	KeyChatsMeta = "chats_meta"
	KeySyncTags  = "tags"
)

// Options configures a Store.
type Options struct {
	// AutoBackup runs BackupMetadata after every successful write to the local tier.
	AutoBackup bool
	Bus        *events.Bus
	Logger     *zap.Logger
}

// Store owns all persisted state.
type Store struct {
	local storage.Tier
	sync  storage.Tier // nil disables backup and restore

	mu       sync.Mutex // serializes local read-modify-write
	backupMu sync.Mutex // orders backups so a newer snapshot is never overwritten by an older one

	autoBackup bool
	bus        *events.Bus
	log        *zap.Logger
}

// New creates a Store over local and (optionally) sync.
func New(local, sync storage.Tier, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		local:      local,
		sync:       sync,
		autoBackup: opts.AutoBackup,
		bus:        opts.Bus,
		log:        log.With(zap.String("component", "store")),
	}
}

// afterWrite publishes e and runs the automatic backup.
func (s *Store) afterWrite(ctx context.Context, e events.Event) {
	if e.Kind != "" {
		s.bus.Publish(e)
	}
	if s.autoBackup && s.sync != nil {
		s.BackupMetadata(ctx)
	}
}

func (s *Store) loadMemos(ctx context.Context) ([]memo.Memo, error) {
	memos := make([]memo.Memo, 0)
	if _, err := storage.Load(ctx, s.local, KeyMemos, &memos); err != nil {
		return nil, err
	}
	return memos, nil
}

// loadTags returns the stored catalog and whether it exists.
func (s *Store) loadTags(ctx context.Context) ([]memo.Tag, bool, error) {
	tags := make([]memo.Tag, 0)
	found, err := storage.Load(ctx, s.local, KeyTags, &tags)
	if err != nil {
		return nil, false, err
	}
	return tags, found, nil
}

func (s *Store) loadChats(ctx context.Context) ([]memo.SavedChat, error) {
	chats := make([]memo.SavedChat, 0)
	if _, err := storage.Load(ctx, s.local, KeyChats, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}
