package web

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/app"
	"github.com/hpungsan/webmemo/internal/capture"
	"github.com/hpungsan/webmemo/internal/chat"
	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
	"github.com/hpungsan/webmemo/internal/ops"
)

// Handlers contains the HTTP route handlers.
type Handlers struct {
	app     *app.App
	version string
	log     *zap.Logger
}

// decodeBody reads a JSON request body into T.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, errors.NewInvalidRequest("invalid request body: " + err.Error())
	}
	return v, nil
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    h.version,
		"credential": h.app.Session.HasCredential(),
	})
}

// HandleCapture handles POST /api/capture.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[capture.Input](w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	if strings.TrimSpace(in.URL) == "" {
		respondError(w, errors.NewInvalidRequest("url is required"))
		return
	}

	// A client that goes away does not abort the capture; the model call has its own deadline
	m, err := h.app.Capture.Capture(context.WithoutCancel(r.Context()), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// HandleListMemos handles GET /api/memos, optionally filtered by ?tag=.
func (h *Handlers) HandleListMemos(w http.ResponseWriter, r *http.Request) {
	var (
		memos []memo.Memo
		err   error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		memos, err = h.app.Store.FilterByTag(r.Context(), tag)
	} else {
		memos, err = h.app.Store.ListMemos(r.Context())
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"memos": memo.Briefs(memos), "total": len(memos)})
}

// HandleGetMemo handles GET /api/memos/{id}.
func (h *Handlers) HandleGetMemo(w http.ResponseWriter, r *http.Request) {
	m, err := h.app.Store.GetMemo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

var narrativePage = template.Must(template.New("narrative").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><article>
<h1>{{.Title}}</h1>
<p><a href="{{.URL}}">{{.URL}}</a> · {{.Tag}}</p>
<p><em>{{.Summary}}</em></p>
{{.Body}}
</article></body></html>
`))

// HandleNarrative handles GET /api/memos/{id}/narrative: the narrative
// rendered as an HTML page.
func (h *Handlers) HandleNarrative(w http.ResponseWriter, r *http.Request) {
	m, err := h.app.Store.GetMemo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = narrativePage.Execute(w, map[string]any{
		"Title":   m.Title,
		"URL":     m.URL,
		"Tag":     m.Tag,
		"Summary": m.Summary,
		"Body":    renderMarkdown(m.Narrative),
	})
}

// HandleDeleteMemo handles DELETE /api/memos/{id}.
func (h *Handlers) HandleDeleteMemo(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Store.DeleteMemo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleRetag handles PUT /api/memos/{id}/tag with body {"tag": name}.
func (h *Handlers) HandleRetag(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[struct {
		Tag string `json:"tag"`
	}](w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	out, err := h.app.Retag(r.Context(), chi.URLParam(r, "id"), body.Tag)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleListTags handles GET /api/tags: the catalog with memo counts.
func (h *Handlers) HandleListTags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.app.Store.TagCounts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tags": counts})
}

// HandleAddTag handles POST /api/tags.
func (h *Handlers) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[ops.AddTagInput](w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	tag, err := h.app.Store.AddTag(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

// HandleDeleteTag handles DELETE /api/tags/{name}.
func (h *Handlers) HandleDeleteTag(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Store.DeleteTag(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleChatPrepare handles POST /api/chat/prepare with body {"tag", "useRaw"}.
func (h *Handlers) HandleChatPrepare(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[struct {
		Tag    string `json:"tag"`
		UseRaw bool   `json:"useRaw"`
	}](w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	g, err := h.app.Chat.Prepare(r.Context(), body.Tag, body.UseRaw)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

type messagesBody struct {
	Tag      string         `json:"tag,omitempty"`
	Messages []memo.Message `json:"messages"`
}

// HandleChatReply handles POST /api/chat/reply with the full message history.
func (h *Handlers) HandleChatReply(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[messagesBody](w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	reply, err := h.app.Chat.Reply(r.Context(), body.Messages)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reply": reply, "citations": chat.Citations(reply)})
}

// HandleListChats handles GET /api/chats, optionally filtered by ?tag=.
func (h *Handlers) HandleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.app.Store.ListChats(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		respondError(w, err)
		return
	}
	metas := make([]memo.ChatMeta, len(chats))
	for i := range chats {
		metas[i] = chats[i].Meta()
	}
	respondJSON(w, http.StatusOK, map[string]any{"chats": metas, "total": len(metas)})
}

// HandleSaveChat handles POST /api/chats with body {"tag": name, "messages": [...]}.
func (h *Handlers) HandleSaveChat(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[messagesBody](w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	if body.Tag == "" {
		respondError(w, errors.NewInvalidRequest("tag is required"))
		return
	}

	tag, err := h.app.Store.FindTag(r.Context(), body.Tag)
	if err != nil {
		respondError(w, err)
		return
	}
	saved, err := h.app.Store.SaveChat(r.Context(), ops.SaveChatInput{Tag: tag, Messages: body.Messages})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

// HandleGetChat handles GET /api/chats/{id}.
func (h *Handlers) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Store.GetChat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// HandleDeleteChat handles DELETE /api/chats/{id}.
func (h *Handlers) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Store.DeleteChat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleSetCredential handles PUT /api/settings/credential with body {"apiKey": key}.
// An empty key clears the credential.
func (h *Handlers) HandleSetCredential(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[struct {
		APIKey string `json:"apiKey"`
	}](w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.app.SetAPIKey(r.Context(), body.APIKey); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"configured": h.app.Session.HasCredential()})
}

// HandleBackup handles POST /api/backup.
func (h *Handlers) HandleBackup(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.app.Store.BackupMetadata(r.Context()))
}

// HandleRestore handles POST /api/restore.
func (h *Handlers) HandleRestore(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Store.RestoreFromBackup(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleStorageUsage handles GET /api/storage.
func (h *Handlers) HandleStorageUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.app.Usage(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tiers": usage})
}

// HandleEvents handles GET /api/events: a server-sent event stream of bus
// events. Events published while no stream is open are not replayed.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, errors.NewInternal(fmt.Errorf("streaming unsupported")))
		return
	}

	sub := h.app.Bus.Subscribe(events.DefaultBuffer)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.log.Debug("event stream opened", zap.String("subscriber", sub.ID.String()))
	defer h.log.Debug("event stream closed", zap.String("subscriber", sub.ID.String()))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	bw := bufio.NewWriter(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = bw.WriteString(": ping\n\n")
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.log.Warn("event encode failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(bw, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Kind, data)
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}
