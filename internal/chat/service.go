package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/memo"
)

// Completer is the model call the chat needs.
type Completer interface {
	HasCredential() bool
	Complete(ctx context.Context, system string, messages []memo.Message) (string, error)
}

// Store is the read access the chat needs.
type Store interface {
	FindTag(ctx context.Context, name string) (memo.Tag, error)
	FilterByTag(ctx context.Context, tag string) ([]memo.Memo, error)
}

// Service answers chat turns.
type Service struct {
	model Completer
	store Store
	log   *zap.Logger
}

// NewService creates a Service. log may be nil.
func NewService(model Completer, store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{model: model, store: store, log: log.With(zap.String("component", "chat"))}
}

// Grounding is a prepared grounding set for one tag.
type Grounding struct {
	Tag          memo.Tag `json:"tag"`
	UseRaw       bool     `json:"useRaw"`
	MemoCount    int      `json:"memoCount"`
	Cost         Cost     `json:"cost"`
	SystemPrompt string   `json:"systemPrompt"`
}

// Prepare selects the memos tagged tagName and builds their system prompt.
func (s *Service) Prepare(ctx context.Context, tagName string, useRaw bool) (*Grounding, error) {
	tag, err := s.store.FindTag(ctx, tagName)
	if err != nil {
		return nil, err
	}
	memos, err := s.store.FilterByTag(ctx, tag.Name)
	if err != nil {
		return nil, err
	}
	return &Grounding{
		Tag:          tag,
		UseRaw:       useRaw,
		MemoCount:    len(memos),
		Cost:         EstimateCost(memos, useRaw),
		SystemPrompt: BuildSystemPrompt(memos, tag, useRaw),
	}, nil
}

// Reply sends history to the model and returns the assistant's answer.
// System messages travel as the provider's system prompt; the last message
// must be a user turn.
func (s *Service) Reply(ctx context.Context, history []memo.Message) (string, error) {
	if !s.model.HasCredential() {
		return "", errors.NewCredentialMissing()
	}
	if len(history) == 0 || history[len(history)-1].Role != memo.RoleUser {
		return "", errors.NewInvalidRequest("chat history must end with a user message")
	}

	reply, err := s.model.Complete(ctx, "", history)
	if err != nil {
		s.log.Warn("chat turn failed", zap.Error(err))
		return "", err
	}
	s.log.Debug("chat turn", zap.Int("messages", len(history)), zap.Int("citations", len(Citations(reply))))
	return reply, nil
}

// Ask appends question to c, gets a reply and appends it too. On error c is
// left without the question.
func (s *Service) Ask(ctx context.Context, c *Conversation, question string) (string, error) {
	history := append(c.Messages(), memo.Message{Role: memo.RoleUser, Content: question})
	reply, err := s.Reply(ctx, history)
	if err != nil {
		return "", err
	}
	c.AddUser(question)
	c.AddAssistant(reply)
	return reply, nil
}
