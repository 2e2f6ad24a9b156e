package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/webmemo/internal/app"
	"github.com/hpungsan/webmemo/internal/capture"
	"github.com/hpungsan/webmemo/internal/chat"
	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/memo"
	"github.com/hpungsan/webmemo/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Request types for each tool

// CaptureRequest represents the arguments for memo_capture.
type CaptureRequest struct {
	URL       string `json:"url"`
	RawHTML   string `json:"raw_html"`
	Favicon   string `json:"favicon,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// IDRequest represents the arguments for tools addressing one record by id.
type IDRequest struct {
	ID string `json:"id"`
}

// TagFilterRequest represents the arguments for memo_list and chat_list.
type TagFilterRequest struct {
	Tag string `json:"tag,omitempty"`
}

// RetagRequest represents the arguments for memo_retag.
type RetagRequest struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

// TagDeleteRequest represents the arguments for tag_delete.
type TagDeleteRequest struct {
	Name string `json:"name"`
}

// ChatPrepareRequest represents the arguments for chat_prepare.
type ChatPrepareRequest struct {
	Tag    string `json:"tag"`
	UseRaw bool   `json:"use_raw,omitempty"`
}

// ChatMessagesRequest represents the arguments for chat_reply and chat_save.
type ChatMessagesRequest struct {
	Tag      string         `json:"tag,omitempty"`
	Messages []memo.Message `json:"messages"`
}

// Output types

// MemoListOutput is the result of memo_list.
type MemoListOutput struct {
	Memos []memo.Brief `json:"memos"`
	Total int          `json:"total"`
}

// ChatReplyOutput is the result of chat_reply.
type ChatReplyOutput struct {
	Reply     string   `json:"reply"`
	Citations []string `json:"citations"`
}

// ChatListOutput is the result of chat_list. Messages are omitted.
type ChatListOutput struct {
	Chats []memo.ChatMeta `json:"chats"`
	Total int             `json:"total"`
}

// Handler implementations

// HandleCapture handles the memo_capture tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return errorResult(errors.NewInvalidRequest("url is required")), nil
	}

	in := capture.Input{URL: input.URL, Favicon: input.Favicon, RawHTML: input.RawHTML}
	if input.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, input.Timestamp)
		if err != nil {
			return errorResult(errors.NewInvalidRequest("timestamp must be RFC 3339")), nil
		}
		in.Timestamp = ts
	}

	result, err := h.app.Capture.Capture(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoList handles the memo_list tool call.
func (h *Handlers) HandleMemoList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TagFilterRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var memos []memo.Memo
	if input.Tag != "" {
		memos, err = h.app.Store.FilterByTag(ctx, input.Tag)
	} else {
		memos, err = h.app.Store.ListMemos(ctx)
	}
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(MemoListOutput{Memos: memo.Briefs(memos), Total: len(memos)})
}

// HandleMemoGet handles the memo_get tool call.
func (h *Handlers) HandleMemoGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := h.app.Store.GetMemo(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoDelete handles the memo_delete tool call.
func (h *Handlers) HandleMemoDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := h.app.Store.DeleteMemo(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoRetag handles the memo_retag tool call.
func (h *Handlers) HandleMemoRetag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RetagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" || input.Tag == "" {
		return errorResult(errors.NewInvalidRequest("id and tag are required")), nil
	}

	result, err := h.app.Retag(ctx, input.ID, input.Tag)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTagList handles the tag_list tool call.
func (h *Handlers) HandleTagList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.app.Store.TagCounts(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"tags": result})
}

// HandleTagAdd handles the tag_add tool call.
func (h *Handlers) HandleTagAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.AddTagInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.app.Store.AddTag(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTagDelete handles the tag_delete tool call.
func (h *Handlers) HandleTagDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TagDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.app.Store.DeleteTag(ctx, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleChatPrepare handles the chat_prepare tool call.
func (h *Handlers) HandleChatPrepare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChatPrepareRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Tag == "" {
		return errorResult(errors.NewInvalidRequest("tag is required")), nil
	}

	result, err := h.app.Chat.Prepare(ctx, input.Tag, input.UseRaw)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleChatReply handles the chat_reply tool call.
func (h *Handlers) HandleChatReply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChatMessagesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	reply, err := h.app.Chat.Reply(ctx, input.Messages)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ChatReplyOutput{Reply: reply, Citations: chat.Citations(reply)})
}

// HandleChatSave handles the chat_save tool call.
func (h *Handlers) HandleChatSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChatMessagesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Tag == "" {
		return errorResult(errors.NewInvalidRequest("tag is required")), nil
	}

	tag, err := h.app.Store.FindTag(ctx, input.Tag)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := h.app.Store.SaveChat(ctx, ops.SaveChatInput{Tag: tag, Messages: input.Messages})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result.Meta())
}

// HandleChatList handles the chat_list tool call.
func (h *Handlers) HandleChatList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TagFilterRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	chats, err := h.app.Store.ListChats(ctx, input.Tag)
	if err != nil {
		return errorResult(err), nil
	}
	out := ChatListOutput{Chats: make([]memo.ChatMeta, len(chats)), Total: len(chats)}
	for i := range chats {
		out.Chats[i] = chats[i].Meta()
	}
	return successResult(out)
}

// HandleChatDelete handles the chat_delete tool call.
func (h *Handlers) HandleChatDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := h.app.Store.DeleteChat(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBackupRun handles the backup_run tool call.
func (h *Handlers) HandleBackupRun(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.app.Store.BackupMetadata(ctx))
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if mErr, ok := errors.As(err); ok {
		msg := mErr.Message
		if err != error(mErr) {
			// keep the wrapping context
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": msg,
			"status":  mErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
