package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/webmemo/internal/app"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"memo", "tag", "chat", "backup"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"memo_capture": {
		def:     captureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"memo_list": {
		def:     memoListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoList },
	},
	"memo_get": {
		def:     memoGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoGet },
	},
	"memo_delete": {
		def:     memoDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoDelete },
	},
	"memo_retag": {
		def:     memoRetagToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoRetag },
	},
	"tag_list": {
		def:     tagListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagList },
	},
	"tag_add": {
		def:     tagAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagAdd },
	},
	"tag_delete": {
		def:     tagDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagDelete },
	},
	"chat_prepare": {
		def:     chatPrepareToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChatPrepare },
	},
	"chat_reply": {
		def:     chatReplyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChatReply },
	},
	"chat_save": {
		def:     chatSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChatSave },
	},
	"chat_list": {
		def:     chatListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChatList },
	},
	"chat_delete": {
		def:     chatDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChatDelete },
	},
	"backup_run": {
		def:     backupRunToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackupRun },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "memo_capture" → "memo").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the webmemo tools registered.
// Tools listed in DisabledTools or belonging to DisabledTypes are excluded.
func NewServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"webmemo",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(a)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(a.Config.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range a.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(a *app.App, version string) error {
	s := NewServer(a, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
