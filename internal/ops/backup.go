package ops

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
)

// BackupMode says how much of the metadata reached the sync tier.
type BackupMode string

const (
	BackupFull     BackupMode = "full"
	BackupTagsOnly BackupMode = "tags_only"
	BackupFailed   BackupMode = "failed"
	BackupSkipped  BackupMode = "skipped"
)

// BackupOutput reports the result of BackupMetadata.
type BackupOutput struct {
	Mode  BackupMode `json:"mode"`
	Memos int        `json:"memos"`
	Chats int        `json:"chats"`
	Tags  int        `json:"tags"`
	Error string     `json:"error,omitempty"`
}

// BackupMetadata copies the memo and chat projections and the tag catalog to
// the sync tier. When the sync tier rejects the write for size, only the tags
// are written. It never fails; problems are logged and reported in the output.
func (s *Store) BackupMetadata(ctx context.Context) *BackupOutput {
	if s.sync == nil {
		return &BackupOutput{Mode: BackupSkipped}
	}

	s.backupMu.Lock()
	defer s.backupMu.Unlock()

	memos, chats, tags, err := s.snapshot(ctx)
	if err != nil {
		s.log.Error("backup: read local tier", zap.Error(err))
		return &BackupOutput{Mode: BackupFailed, Error: err.Error()}
	}

	memoMeta := make([]memo.Meta, len(memos))
	for i := range memos {
		memoMeta[i] = memos[i].Meta()
	}
	chatMeta := make([]memo.ChatMeta, len(chats))
	for i := range chats {
		chatMeta[i] = chats[i].Meta()
	}

	err = s.sync.Set(ctx, map[string]any{
		KeyMemosMeta: memoMeta,
		KeyChatsMeta: chatMeta,
		KeySyncTags:  tags,
	})
	if err == nil {
		s.log.Debug("backup written", zap.Int("memos", len(memos)), zap.Int("chats", len(chats)), zap.Int("tags", len(tags)))
		return &BackupOutput{Mode: BackupFull, Memos: len(memos), Chats: len(chats), Tags: len(tags)}
	}
	if !errors.Is(err, errors.ErrStorageQuotaExceeded) {
		s.log.Error("backup failed", zap.Error(err))
		return &BackupOutput{Mode: BackupFailed, Error: err.Error()}
	}

	s.log.Warn("backup over sync quota; writing tags only", zap.Error(err))
	if err := s.sync.Set(ctx, map[string]any{KeySyncTags: tags}); err != nil {
		s.log.Error("tags-only backup failed", zap.Error(err))
		return &BackupOutput{Mode: BackupFailed, Error: err.Error()}
	}
	return &BackupOutput{Mode: BackupTagsOnly, Tags: len(tags)}
}

// snapshot reads memos, chats and tags in one Get.
func (s *Store) snapshot(ctx context.Context) ([]memo.Memo, []memo.SavedChat, []memo.Tag, error) {
	raw, err := s.local.Get(ctx, KeyMemos, KeyChats, KeyTags)
	if err != nil {
		return nil, nil, nil, err
	}
	memos := make([]memo.Memo, 0)
	chats := make([]memo.SavedChat, 0)
	tags := memo.PredefinedTags()
	if err := decodeIfPresent(raw, KeyMemos, &memos); err != nil {
		return nil, nil, nil, err
	}
	if err := decodeIfPresent(raw, KeyChats, &chats); err != nil {
		return nil, nil, nil, err
	}
	if err := decodeIfPresent(raw, KeyTags, &tags); err != nil {
		return nil, nil, nil, err
	}
	return memos, chats, tags, nil
}

func decodeIfPresent(raw map[string]json.RawMessage, key string, out any) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RestoreOutput reports the result of RestoreFromBackup.
type RestoreOutput struct {
	Restored bool   `json:"restored"`
	Reason   string `json:"reason,omitempty"`
	Memos    int    `json:"memos"`
	Chats    int    `json:"chats"`
	Tags     int    `json:"tags"`
}

// RestoreFromBackup rebuilds the local tier from the sync tier on a cold
// start: only when the local tier holds no memos, tags or chats and the sync
// tier holds a backup. Restored memos and chats are marked metadata-only.
func (s *Store) RestoreFromBackup(ctx context.Context) (*RestoreOutput, error) {
	if s.sync == nil {
		return &RestoreOutput{Reason: "no sync tier configured"}, nil
	}

	s.mu.Lock()
	out, err := s.restoreLocked(ctx)
	s.mu.Unlock()
	if err != nil || !out.Restored {
		return out, err
	}

	s.log.Info("restored from backup", zap.Int("memos", out.Memos), zap.Int("chats", out.Chats), zap.Int("tags", out.Tags))
	s.bus.Publish(events.Event{Kind: events.StorageRestored})
	return out, nil
}

func (s *Store) restoreLocked(ctx context.Context) (*RestoreOutput, error) {
	local, err := s.local.Get(ctx, KeyMemos, KeyTags, KeyChats)
	if err != nil {
		return nil, err
	}
	if len(local) > 0 {
		return &RestoreOutput{Reason: "local data present"}, nil
	}

	backup, err := s.sync.Get(ctx, KeyMemosMeta, KeyChatsMeta, KeySyncTags)
	if err != nil {
		return nil, err
	}
	if len(backup) == 0 {
		return &RestoreOutput{Reason: "no backup found"}, nil
	}

	var memoMeta []memo.Meta
	var chatMeta []memo.ChatMeta
	tags := memo.PredefinedTags()
	if err := decodeIfPresent(backup, KeyMemosMeta, &memoMeta); err != nil {
		return nil, err
	}
	if err := decodeIfPresent(backup, KeyChatsMeta, &chatMeta); err != nil {
		return nil, err
	}
	if err := decodeIfPresent(backup, KeySyncTags, &tags); err != nil {
		return nil, err
	}

	memos := make([]memo.Memo, len(memoMeta))
	for i, m := range memoMeta {
		memos[i] = memo.FromMeta(m)
	}
	chats := make([]memo.SavedChat, len(chatMeta))
	for i, c := range chatMeta {
		chats[i] = memo.SavedChat{
			ID:           c.ID,
			Title:        c.Title,
			Tag:          c.Tag,
			Timestamp:    c.Timestamp,
			Messages:     []memo.Message{},
			MetadataOnly: true,
		}
	}
	if tags == nil {
		tags = memo.PredefinedTags()
	}

	if err := s.local.Set(ctx, map[string]any{KeyMemos: memos, KeyChats: chats, KeyTags: tags}); err != nil {
		return nil, err
	}
	return &RestoreOutput{Restored: true, Memos: len(memos), Chats: len(chats), Tags: len(tags)}, nil
}
