// Package memo defines the records webmemo persists: memos, tags and saved chats.
package memo

import (
	"encoding/json"
	"time"
)

// Untagged is the reserved tag name. It is never stored in the catalog and is always valid.
const Untagged = "Untagged"

// Memo is one captured web fragment together with the model's reading of it.
type Memo struct {
	// ID is a ULID assigned at creation
	ID string `json:"id"`

	// URL, Favicon and Timestamp record where and when the fragment was captured
	URL       string    `json:"url"`
	Favicon   string    `json:"favicon,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// SourceHTML is the sanitized fragment. Empty for memos recovered from backup.
	SourceHTML string `json:"sourceHtml"`

	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Narrative string `json:"narrative"`

	// StructuredData is any JSON value the model extracted, or nil
	StructuredData json.RawMessage `json:"structuredData"`

	// Tag is a catalog tag name or Untagged
	Tag string `json:"tag"`

	// MetadataOnly marks memos rebuilt from the metadata backup; only
	// id, title, tag, timestamp and url are real.
	MetadataOnly bool `json:"metadataOnly,omitempty"`
}

// Meta is the projection of a Memo written to the sync tier.
type Meta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tag       string    `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
}

// Meta returns the backup projection of m.
func (m *Memo) Meta() Meta {
	return Meta{ID: m.ID, Title: m.Title, Tag: m.Tag, Timestamp: m.Timestamp, URL: m.URL}
}

// FromMeta rebuilds a metadata-only memo.
func FromMeta(meta Meta) Memo {
	tag := meta.Tag
	if tag == "" {
		tag = Untagged
	}
	return Memo{
		ID:           meta.ID,
		URL:          meta.URL,
		Timestamp:    meta.Timestamp,
		Title:        meta.Title,
		Tag:          tag,
		MetadataOnly: true,
	}
}

// Brief is a memo without its bodies, used in listings.
type Brief struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Tag          string    `json:"tag"`
	Timestamp    time.Time `json:"timestamp"`
	URL          string    `json:"url"`
	MetadataOnly bool      `json:"metadataOnly,omitempty"`
}

// Brief returns the listing view of m.
func (m *Memo) Brief() Brief {
	return Brief{
		ID:           m.ID,
		Title:        m.Title,
		Summary:      m.Summary,
		Tag:          m.Tag,
		Timestamp:    m.Timestamp,
		URL:          m.URL,
		MetadataOnly: m.MetadataOnly,
	}
}

// Briefs returns the listing view of every memo in memos.
func Briefs(memos []Memo) []Brief {
	out := make([]Brief, len(memos))
	for i := range memos {
		out[i] = memos[i].Brief()
	}
	return out
}

// Content is the normalized part of a model response.
type Content struct {
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	Narrative      string          `json:"narrative"`
	StructuredData json.RawMessage `json:"structuredData"`
	SelectedTag    string          `json:"selectedTag"`
}

// Tag is a catalog entry used to classify memos.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SavedChat is a persisted conversation. Tag is a snapshot taken at save time;
// later edits or deletion of the catalog tag do not affect it.
type SavedChat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tag       Tag       `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`

	// MetadataOnly marks chats rebuilt from the metadata backup (no messages).
	MetadataOnly bool `json:"metadataOnly,omitempty"`
}

// ChatMeta is the projection of a SavedChat written to the sync tier.
type ChatMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tag       Tag       `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
}

// Meta returns the backup projection of c.
func (c *SavedChat) Meta() ChatMeta {
	return ChatMeta{ID: c.ID, Title: c.Title, Tag: c.Tag, Timestamp: c.Timestamp}
}
