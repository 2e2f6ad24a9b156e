package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var captureToolDef = mcp.NewTool("memo_capture",
	mcp.WithDescription("Capture an HTML fragment as a memo. The fragment is sanitized, read by the model "+
		"(title, summary, narrative, structured data, tag) and stored."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Page the fragment was captured from.")),
	mcp.WithString("raw_html", mcp.Required(), mcp.Description("The captured HTML fragment.")),
	mcp.WithString("favicon", mcp.Description("Favicon URL. Defaults to <origin>/favicon.ico.")),
	mcp.WithString("timestamp", mcp.Description("Capture time, RFC 3339. Defaults to now.")),
)

var memoListToolDef = mcp.NewTool("memo_list",
	mcp.WithDescription("List memos newest first, without their bodies."),
	mcp.WithString("tag", mcp.Description("Only memos with this exact tag (Untagged included).")),
)

var memoGetToolDef = mcp.NewTool("memo_get",
	mcp.WithDescription("Fetch one memo with its narrative, structured data and sanitized source HTML."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Memo ID.")),
)

var memoDeleteToolDef = mcp.NewTool("memo_delete",
	mcp.WithDescription("Delete a memo. Deleting an unknown ID succeeds with deleted=false."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Memo ID.")),
)

var memoRetagToolDef = mcp.NewTool("memo_retag",
	mcp.WithDescription("Move a memo to another tag. The tag must exist or be Untagged."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Memo ID.")),
	mcp.WithString("tag", mcp.Required(), mcp.Description("New tag name.")),
)

var tagListToolDef = mcp.NewTool("tag_list",
	mcp.WithDescription("List the tag catalog with the number of memos per tag. Untagged comes last."),
)

var tagAddToolDef = mcp.NewTool("tag_add",
	mcp.WithDescription("Add a tag to the catalog."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Tag name, unique.")),
	mcp.WithString("description", mcp.Description("What belongs under this tag. Shown to the model.")),
	mcp.WithString("color", mcp.Description("One of pink, blue, green, purple, yellow, red, indigo, teal, orange, cyan. Random when empty.")),
	mcp.WithString("icon", mcp.Description("Icon name. Defaults to tag.")),
)

var tagDeleteToolDef = mcp.NewTool("tag_delete",
	mcp.WithDescription("Delete a tag. Its memos move to Untagged."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Tag name.")),
)

var chatPrepareToolDef = mcp.NewTool("chat_prepare",
	mcp.WithDescription("Build the grounding system prompt for the memos of one tag, with a word and token estimate."),
	mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name.")),
	mcp.WithBoolean("use_raw", mcp.Description("Ground on sanitized source HTML instead of narratives.")),
)

var chatReplyToolDef = mcp.NewTool("chat_reply",
	mcp.WithDescription("Send a chat history to the model and return the assistant reply and the memo titles it cites."),
	mcp.WithArray("messages", mcp.Required(), mcp.Description("Ordered {role, content} messages; the last must be a user turn.")),
)

var chatSaveToolDef = mcp.NewTool("chat_save",
	mcp.WithDescription("Save a conversation. Needs at least one user and one assistant message."),
	mcp.WithString("tag", mcp.Required(), mcp.Description("Tag the conversation was grounded on.")),
	mcp.WithArray("messages", mcp.Required(), mcp.Description("Ordered {role, content} messages.")),
)

var chatListToolDef = mcp.NewTool("chat_list",
	mcp.WithDescription("List saved chats newest first."),
	mcp.WithString("tag", mcp.Description("Only chats saved under this tag.")),
)

var chatDeleteToolDef = mcp.NewTool("chat_delete",
	mcp.WithDescription("Delete a saved chat."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Chat ID.")),
)

var backupRunToolDef = mcp.NewTool("backup_run",
	mcp.WithDescription("Copy memo and chat metadata plus the tag catalog to the sync tier now."),
)
