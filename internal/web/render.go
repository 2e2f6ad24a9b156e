package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/webmemo/internal/errors"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes the error envelope. Anything that is not a MemoError
// is reported as INTERNAL without its message.
func respondError(w http.ResponseWriter, err error) {
	mErr, ok := errors.As(err)
	if !ok {
		mErr = &errors.MemoError{Code: errors.ErrInternal, Status: http.StatusInternalServerError, Message: "an internal error occurred"}
	}

	errorObj := map[string]any{
		"code":    string(mErr.Code),
		"message": mErr.Message,
		"status":  mErr.Status,
	}
	if mErr.Code != errors.ErrInternal && mErr.Details != nil {
		errorObj["details"] = mErr.Details
	}
	respondJSON(w, mErr.Status, map[string]any{"error": errorObj})
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the input is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
