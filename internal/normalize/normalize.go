// Package normalize turns raw model output into a memo.Content. It accepts
// any input and always returns a well-formed result; unparseable responses
// become a fallback record flagged as degraded.
package normalize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hpungsan/webmemo/internal/memo"
)

// Fallback field values.
const (
	FallbackTitle = "Error Processing Content"
	UntitledTitle = "Untitled"
)

// Result is the outcome of normalizing one response.
type Result struct {
	Content memo.Content
	// Degraded is true when the fallback record was produced
	Degraded bool
	// Reason explains why the response was degraded
	Reason string
}

var fenceLine = regexp.MustCompile("^\\s*```[A-Za-z0-9_-]*\\s*$")

// Response normalizes raw against the tag names currently in the catalog.
// Untagged is always accepted.
func Response(raw string, tagNames []string) Result {
	cleaned := stripFences(raw)

	body, ok := jsonObject(cleaned)
	if !ok {
		return fallback(raw, "response is not a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return fallback(raw, "response JSON could not be parsed: "+err.Error())
	}

	var c memo.Content
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"title", &c.Title},
		{"summary", &c.Summary},
		{"narrative", &c.Narrative},
		{"selectedTag", &c.SelectedTag},
	} {
		v, present := fields[f.key]
		if !present {
			return fallback(raw, "response is missing "+f.key)
		}
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fallback(raw, f.key+" is null")
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fallback(raw, f.key+" is not a string")
		}
	}

	c.Title = singleLine(c.Title)
	if c.Title == "" {
		c.Title = UntitledTitle
	}
	c.Summary = singleLine(c.Summary)
	c.Narrative = multiLine(c.Narrative)
	c.SelectedTag = ResolveTag(singleLine(c.SelectedTag), tagNames)
	c.StructuredData = structuredData(fields["structuredData"])

	return Result{Content: c}
}

// ResolveTag maps a model-selected tag onto the catalog. An exact match wins,
// then a case-insensitive one; anything else becomes Untagged.
func ResolveTag(selected string, tagNames []string) string {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return memo.Untagged
	}
	if selected == memo.Untagged {
		return memo.Untagged
	}
	for _, name := range tagNames {
		if name == selected {
			return name
		}
	}
	for _, name := range tagNames {
		if strings.EqualFold(name, selected) {
			return name
		}
	}
	return memo.Untagged
}

// stripFences drops Markdown code-fence lines and blank lines.
func stripFences(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) == "" || fenceLine.MatchString(l) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// jsonObject returns s when it is wrapped in braces, otherwise the outermost
// {...} span inside surrounding prose.
func jsonObject(s string) (string, bool) {
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s, true
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func structuredData(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil
	}
	if buf.String() == "null" {
		return nil
	}
	return json.RawMessage(buf.Bytes())
}

func fallback(raw, reason string) Result {
	return Result{
		Content: memo.Content{
			Title:       FallbackTitle,
			Summary:     "The model response could not be parsed into a memo (" + reason + "). The raw response is kept as the narrative.",
			Narrative:   multiLine(raw),
			SelectedTag: memo.Untagged,
		},
		Degraded: true,
		Reason:   reason,
	}
}

// isControl reports C0 and C1 control characters (U+0000–U+001F, U+007F–U+009F).
func isControl(r rune) bool {
	return r <= 0x1F || (r >= 0x7F && r <= 0x9F)
}

// singleLine strips control characters, turning tabs and line breaks into spaces.
func singleLine(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case isControl(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// multiLine strips control characters except newlines and tabs.
func multiLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if isControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
