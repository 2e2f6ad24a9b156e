package ops

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
)

// SaveChatInput contains parameters for SaveChat.
type SaveChatInput struct {
	// Tag is copied into the saved chat as a snapshot
	Tag      memo.Tag       `json:"tag"`
	Messages []memo.Message `json:"messages"`
}

// SaveChat persists a conversation. It needs at least one user and one
// assistant turn; the title comes from the first user turn.
func (s *Store) SaveChat(ctx context.Context, input SaveChatInput) (*memo.SavedChat, error) {
	if input.Tag.Name == "" {
		return nil, errors.NewInvalidRequest("chat tag is required")
	}

	firstUser := ""
	hasUser, hasAssistant := false, false
	for _, m := range input.Messages {
		switch m.Role {
		case memo.RoleUser:
			if !hasUser {
				firstUser = m.Content
			}
			hasUser = true
		case memo.RoleAssistant:
			hasAssistant = true
		case memo.RoleSystem:
		default:
			return nil, errors.NewInvalidRequest("unknown message role: " + m.Role)
		}
	}
	if !hasUser || !hasAssistant {
		return nil, errors.NewInvalidRequest("a chat needs at least one user and one assistant message to be saved")
	}

	id, err := memo.NewID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	messages := make([]memo.Message, len(input.Messages))
	copy(messages, input.Messages)

	chat := memo.SavedChat{
		ID:        id,
		Title:     memo.ChatTitle(firstUser),
		Tag:       input.Tag,
		Timestamp: time.Now().UTC(),
		Messages:  messages,
	}

	s.mu.Lock()
	chats, err := s.loadChats(ctx)
	if err == nil {
		chats = append([]memo.SavedChat{chat}, chats...)
		err = s.local.Set(ctx, map[string]any{KeyChats: chats})
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("chat saved", zap.String("id", id), zap.String("tag", chat.Tag.Name), zap.Int("messages", len(messages)))
	s.afterWrite(ctx, events.Event{Kind: events.ChatsChanged, Tag: chat.Tag.Name})
	return &chat, nil
}

// ListChats returns saved chats newest first. A non-empty tagName keeps only
// chats whose tag snapshot has that name.
func (s *Store) ListChats(ctx context.Context, tagName string) ([]memo.SavedChat, error) {
	chats, err := s.loadChats(ctx)
	if err != nil {
		return nil, err
	}
	if tagName == "" {
		return chats, nil
	}
	out := make([]memo.SavedChat, 0)
	for _, c := range chats {
		if c.Tag.Name == tagName {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetChat returns the saved chat with id.
func (s *Store) GetChat(ctx context.Context, id string) (*memo.SavedChat, error) {
	chats, err := s.loadChats(ctx)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if chats[i].ID == id {
			return &chats[i], nil
		}
	}
	return nil, errors.NewNotFound("chat", id)
}

// DeleteChat removes a saved chat. An unknown id is a no-op.
func (s *Store) DeleteChat(ctx context.Context, id string) (*DeleteOutput, error) {
	s.mu.Lock()
	chats, err := s.loadChats(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	kept := make([]memo.SavedChat, 0, len(chats))
	for _, c := range chats {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(chats) {
		s.mu.Unlock()
		return &DeleteOutput{ID: id, Deleted: false}, nil
	}
	err = s.local.Set(ctx, map[string]any{KeyChats: kept})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("chat deleted", zap.String("id", id))
	s.afterWrite(ctx, events.Event{Kind: events.ChatsChanged})
	return &DeleteOutput{ID: id, Deleted: true}, nil
}
