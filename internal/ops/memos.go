package ops

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
)

// ListMemos returns every memo, newest first.
func (s *Store) ListMemos(ctx context.Context) ([]memo.Memo, error) {
	return s.loadMemos(ctx)
}

// GetMemo returns the memo with id.
func (s *Store) GetMemo(ctx context.Context, id string) (*memo.Memo, error) {
	memos, err := s.loadMemos(ctx)
	if err != nil {
		return nil, err
	}
	for i := range memos {
		if memos[i].ID == id {
			return &memos[i], nil
		}
	}
	return nil, errors.NewNotFound("memo", id)
}

// FilterByTag returns the memos whose tag equals tag, including Untagged.
func (s *Store) FilterByTag(ctx context.Context, tag string) ([]memo.Memo, error) {
	memos, err := s.loadMemos(ctx)
	if err != nil {
		return nil, err
	}
	return filterByTag(memos, tag), nil
}

func filterByTag(memos []memo.Memo, tag string) []memo.Memo {
	out := make([]memo.Memo, 0)
	for _, m := range memos {
		if m.Tag == tag {
			out = append(out, m)
		}
	}
	return out
}

// CreateMemo prepends m to the list and persists it. An empty ID or
// timestamp is filled in. The tag is checked against the catalog under the
// write lock: a tag that is empty or no longer in the catalog becomes Untagged.
func (s *Store) CreateMemo(ctx context.Context, m memo.Memo) (*memo.Memo, error) {
	if m.ID == "" {
		id, err := memo.NewID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		m.ID = id
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if strings.TrimSpace(m.Tag) == "" {
		m.Tag = memo.Untagged
	}

	s.mu.Lock()
	memos, err := s.loadMemos(ctx)
	if err == nil {
		m.Tag, err = s.resolveMemoTagLocked(ctx, m.Tag)
	}
	if err == nil {
		for _, existing := range memos {
			if existing.ID == m.ID {
				err = errors.NewInvalidRequest("memo id already exists: " + m.ID)
				break
			}
		}
	}
	if err == nil {
		memos = append([]memo.Memo{m}, memos...)
		err = s.local.Set(ctx, map[string]any{KeyMemos: memos})
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("memo created", zap.String("id", m.ID), zap.String("tag", m.Tag), zap.Int("memos", len(memos)))
	s.afterWrite(ctx, events.Event{})
	return &m, nil
}

func (s *Store) resolveMemoTagLocked(ctx context.Context, tag string) (string, error) {
	name, ok, err := s.lookupTagLocked(ctx, tag)
	if err != nil {
		return "", err
	}
	if !ok {
		s.log.Warn("memo tag not in catalog, storing as Untagged", zap.String("tag", tag))
		return memo.Untagged, nil
	}
	return name, nil
}

// DeleteOutput reports the result of a delete. Deleting an unknown id is not an error.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteMemo removes the memo with id and publishes memo.deleted so views
// showing it can navigate away.
func (s *Store) DeleteMemo(ctx context.Context, id string) (*DeleteOutput, error) {
	s.mu.Lock()
	memos, err := s.loadMemos(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	kept := make([]memo.Memo, 0, len(memos))
	for _, m := range memos {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(memos) {
		s.mu.Unlock()
		return &DeleteOutput{ID: id, Deleted: false}, nil
	}
	err = s.local.Set(ctx, map[string]any{KeyMemos: kept})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("memo deleted", zap.String("id", id))
	s.afterWrite(ctx, events.Event{Kind: events.MemoDeleted, MemoID: id})
	return &DeleteOutput{ID: id, Deleted: true}, nil
}

// RetagOutput reports the result of a re-tag.
type RetagOutput struct {
	ID      string `json:"id"`
	Tag     string `json:"tag"`
	Updated bool   `json:"updated"`
}

// RetagMemo sets the tag of memo id. The tag is not validated here; see
// RetagMemoChecked. An unknown id is a no-op.
func (s *Store) RetagMemo(ctx context.Context, id, tag string) (*RetagOutput, error) {
	return s.retag(ctx, id, tag, false)
}

// RetagMemoChecked is RetagMemo with tag looked up in the catalog under the
// same lock as the write, so a concurrent DeleteTag cannot slip in between.
// A tag outside the catalog and not Untagged is NOT_FOUND.
func (s *Store) RetagMemoChecked(ctx context.Context, id, tag string) (*RetagOutput, error) {
	return s.retag(ctx, id, tag, true)
}

func (s *Store) retag(ctx context.Context, id, tag string, checked bool) (*RetagOutput, error) {
	s.mu.Lock()
	if checked {
		name, ok, err := s.lookupTagLocked(ctx, tag)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if !ok {
			s.mu.Unlock()
			return nil, errors.NewNotFound("tag", tag)
		}
		tag = name
	}
	memos, err := s.loadMemos(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	found := false
	for i := range memos {
		if memos[i].ID == id {
			memos[i].Tag = tag
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return &RetagOutput{ID: id, Tag: tag, Updated: false}, nil
	}
	err = s.local.Set(ctx, map[string]any{KeyMemos: memos})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("memo retagged", zap.String("id", id), zap.String("tag", tag))
	s.afterWrite(ctx, events.Event{Kind: events.MemoRetagged, MemoID: id, Tag: tag})
	return &RetagOutput{ID: id, Tag: tag, Updated: true}, nil
}
