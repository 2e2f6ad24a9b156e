package chat

import (
	"github.com/hpungsan/webmemo/internal/memo"
)

// Conversation is an ordered message history whose first message is always
// the grounding system prompt. Not safe for concurrent use.
type Conversation struct {
	Tag      memo.Tag
	messages []memo.Message
}

// NewConversation starts a conversation grounded with system.
func NewConversation(tag memo.Tag, system string) *Conversation {
	return &Conversation{
		Tag:      tag,
		messages: []memo.Message{{Role: memo.RoleSystem, Content: system}},
	}
}

// SetGrounding replaces the system prompt, keeping every other turn.
func (c *Conversation) SetGrounding(system string) {
	turns := make([]memo.Message, 0, len(c.messages))
	turns = append(turns, memo.Message{Role: memo.RoleSystem, Content: system})
	for _, m := range c.messages {
		if m.Role != memo.RoleSystem {
			turns = append(turns, m)
		}
	}
	c.messages = turns
}

// AddUser appends a user turn.
func (c *Conversation) AddUser(content string) {
	c.messages = append(c.messages, memo.Message{Role: memo.RoleUser, Content: content})
}

// AddAssistant appends an assistant turn.
func (c *Conversation) AddAssistant(content string) {
	c.messages = append(c.messages, memo.Message{Role: memo.RoleAssistant, Content: content})
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []memo.Message {
	out := make([]memo.Message, len(c.messages))
	copy(out, c.messages)
	return out
}
