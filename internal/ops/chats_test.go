package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/memo"
)

func conversation(firstUser string) []memo.Message {
	return []memo.Message{
		{Role: memo.RoleSystem, Content: "grounding"},
		{Role: memo.RoleUser, Content: firstUser},
		{Role: memo.RoleAssistant, Content: "answer"},
	}
}

func TestSaveChat(t *testing.T) {
	env := newTestEnv(t, 0, false)
	ctx := context.Background()

	travel, err := env.store.FindTag(ctx, "Travel")
	require.NoError(t, err)

	long := strings.Repeat("where should I go ", 5)
	chat, err := env.store.SaveChat(ctx, SaveChatInput{Tag: travel, Messages: conversation(long)})
	require.NoError(t, err)
	require.NotEmpty(t, chat.ID)
	require.Equal(t, memo.ChatTitle(long), chat.Title)
	require.True(t, strings.HasSuffix(chat.Title, "..."))
	require.Len(t, chat.Messages, 3)

	got, err := env.store.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	require.Equal(t, chat.Title, got.Title)
}

func TestSaveChat_RequiresBothRoles(t *testing.T) {
	env := newTestEnv(t, 0, false)
	ctx := context.Background()
	tag := memo.Tag{Name: "Travel"}

	tests := []struct {
		name     string
		messages []memo.Message
	}{
		{"empty", nil},
		{"system only", []memo.Message{{Role: memo.RoleSystem, Content: "s"}}},
		{"user only", []memo.Message{{Role: memo.RoleUser, Content: "q"}}},
		{"assistant only", []memo.Message{{Role: memo.RoleAssistant, Content: "a"}}},
		{"bad role", []memo.Message{{Role: "tool", Content: "x"}, {Role: memo.RoleUser, Content: "q"}, {Role: memo.RoleAssistant, Content: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.store.SaveChat(ctx, SaveChatInput{Tag: tag, Messages: tt.messages})
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("SaveChat() error = %v, want INVALID_REQUEST", err)
			}
		})
	}

	chats, err := env.store.ListChats(ctx, "")
	require.NoError(t, err)
	require.Empty(t, chats)
}

func TestSaveChat_TagSnapshotSurvivesTagDeletion(t *testing.T) {
	env := newTestEnv(t, 0, false)
	ctx := context.Background()

	travel, err := env.store.FindTag(ctx, "Travel")
	require.NoError(t, err)
	chat, err := env.store.SaveChat(ctx, SaveChatInput{Tag: travel, Messages: conversation("q")})
	require.NoError(t, err)

	_, err = env.store.DeleteTag(ctx, "Travel")
	require.NoError(t, err)

	got, err := env.store.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	require.Equal(t, travel, got.Tag)
}

func TestListChats_FilterAndDelete(t *testing.T) {
	env := newTestEnv(t, 0, false)
	ctx := context.Background()

	a, err := env.store.SaveChat(ctx, SaveChatInput{Tag: memo.Tag{Name: "Travel"}, Messages: conversation("a")})
	require.NoError(t, err)
	b, err := env.store.SaveChat(ctx, SaveChatInput{Tag: memo.Tag{Name: "Health"}, Messages: conversation("b")})
	require.NoError(t, err)

	all, err := env.store.ListChats(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, b.ID, all[0].ID, "newest first")

	travel, err := env.store.ListChats(ctx, "Travel")
	require.NoError(t, err)
	require.Len(t, travel, 1)
	require.Equal(t, a.ID, travel[0].ID)

	out, err := env.store.DeleteChat(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, out.Deleted)

	out, err = env.store.DeleteChat(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, out.Deleted)

	_, err = env.store.GetChat(ctx, a.ID)
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCredential(t *testing.T) {
	env := newTestEnv(t, 0, false)
	ctx := context.Background()

	key, err := env.store.Credential(ctx)
	require.NoError(t, err)
	require.Empty(t, key)

	require.NoError(t, env.store.SetCredential(ctx, "  sk-ant-123 "))
	key, err = env.store.Credential(ctx)
	require.NoError(t, err)
	require.Equal(t, "sk-ant-123", key)

	require.NoError(t, env.store.SetCredential(ctx, ""))
	key, err = env.store.Credential(ctx)
	require.NoError(t, err)
	require.Empty(t, key)
}
