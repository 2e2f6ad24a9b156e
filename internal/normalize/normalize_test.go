package normalize

import (
	"strings"
	"testing"

	"github.com/hpungsan/webmemo/internal/memo"
)

var catalog = []string{"Shopping", "Travel", "Health", "Technology"}

func TestResponse_FencedJSON(t *testing.T) {
	raw := "```json\n{\"title\":\"T\",\"summary\":\"S\",\"narrative\":\"N\",\"structuredData\":null,\"selectedTag\":\"Travel\"}\n```"

	res := Response(raw, catalog)
	if res.Degraded {
		t.Fatalf("Degraded = true, reason %q", res.Reason)
	}
	c := res.Content
	if c.Title != "T" || c.Summary != "S" || c.Narrative != "N" || c.SelectedTag != "Travel" {
		t.Errorf("Content = %+v", c)
	}
	if c.StructuredData != nil {
		t.Errorf("StructuredData = %s, want nil", c.StructuredData)
	}
}

func TestResponse_PlainText(t *testing.T) {
	res := Response("hello", catalog)
	if !res.Degraded {
		t.Fatal("Degraded = false, want true")
	}
	c := res.Content
	if c.Title != FallbackTitle {
		t.Errorf("Title = %q, want %q", c.Title, FallbackTitle)
	}
	if c.Narrative != "hello" {
		t.Errorf("Narrative = %q, want hello", c.Narrative)
	}
	if c.SelectedTag != memo.Untagged {
		t.Errorf("SelectedTag = %q, want Untagged", c.SelectedTag)
	}
	if c.StructuredData != nil {
		t.Errorf("StructuredData = %s, want nil", c.StructuredData)
	}
	if c.Summary == "" {
		t.Error("Summary is empty, want an explanation")
	}
}

func TestResponse_ProseAroundJSON(t *testing.T) {
	raw := "Here is the memo you asked for:\n\n{\"title\":\"Flights\",\"summary\":\"Cheap fares.\",\"narrative\":\"\",\"selectedTag\":\"Travel\"}\n\nLet me know if you need more."

	res := Response(raw, catalog)
	if res.Degraded {
		t.Fatalf("Degraded = true, reason %q", res.Reason)
	}
	if res.Content.Title != "Flights" {
		t.Errorf("Title = %q", res.Content.Title)
	}
	if res.Content.Narrative != "" {
		t.Errorf("Narrative = %q, want empty", res.Content.Narrative)
	}
}

func TestResponse_StructuredDataCompacted(t *testing.T) {
	raw := `{
  "title": "Laptop",
  "summary": "A review.",
  "narrative": "Long text.",
  "structuredData": { "price": "$999",  "specs": [ "16GB", "1TB" ] },
  "selectedTag": "Technology"
}`
	res := Response(raw, catalog)
	if res.Degraded {
		t.Fatalf("Degraded = true, reason %q", res.Reason)
	}
	want := `{"price":"$999","specs":["16GB","1TB"]}`
	if string(res.Content.StructuredData) != want {
		t.Errorf("StructuredData = %s, want %s", res.Content.StructuredData, want)
	}
}

func TestResponse_StructuredDataAbsent(t *testing.T) {
	res := Response(`{"title":"a","summary":"b","narrative":"c","selectedTag":"Health"}`, catalog)
	if res.Degraded {
		t.Fatalf("Degraded = true, reason %q", res.Reason)
	}
	if res.Content.StructuredData != nil {
		t.Errorf("StructuredData = %s, want nil", res.Content.StructuredData)
	}
}

func TestResponse_MissingOrWrongFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing summary", `{"title":"a","narrative":"c","selectedTag":"Health"}`},
		{"missing selectedTag", `{"title":"a","summary":"b","narrative":"c"}`},
		{"title not string", `{"title":5,"summary":"b","narrative":"c","selectedTag":"Health"}`},
		{"narrative object", `{"title":"a","summary":"b","narrative":{"x":1},"selectedTag":"Health"}`},
		{"null title", `{"title":null,"summary":"b","narrative":"c","selectedTag":"Health"}`},
		{"null selectedTag", `{"title":"a","summary":"b","narrative":"c","selectedTag": null }`},
		{"truncated", `{"title":"a","summary":"b","narr`},
		{"array", `["title","summary"]`},
		{"empty", ``},
		{"fence only", "```\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Response(tt.raw, catalog)
			if !res.Degraded {
				t.Fatalf("Degraded = false for %q", tt.raw)
			}
			if res.Content.Title != FallbackTitle || res.Content.SelectedTag != memo.Untagged {
				t.Errorf("Content = %+v, want fallback", res.Content)
			}
			if res.Reason == "" {
				t.Error("Reason is empty")
			}
		})
	}
}

func TestResponse_TagResolution(t *testing.T) {
	tests := []struct {
		selected string
		want     string
	}{
		{"Travel", "Travel"},
		{"travel", "Travel"},
		{"  Health ", "Health"},
		{"Cooking", memo.Untagged},
		{"Untagged", memo.Untagged},
		{"", memo.Untagged},
	}

	for _, tt := range tests {
		raw := `{"title":"a","summary":"b","narrative":"c","selectedTag":"` + tt.selected + `"}`
		res := Response(raw, catalog)
		if res.Degraded {
			t.Fatalf("Degraded = true for %q: %s", tt.selected, res.Reason)
		}
		if res.Content.SelectedTag != tt.want {
			t.Errorf("selectedTag %q -> %q, want %q", tt.selected, res.Content.SelectedTag, tt.want)
		}
	}
}

func TestResponse_TagFromDeletedCatalogEntry(t *testing.T) {
	res := Response(`{"title":"a","summary":"b","narrative":"c","selectedTag":"Travel"}`, []string{"Health"})
	if res.Content.SelectedTag != memo.Untagged {
		t.Errorf("SelectedTag = %q, want Untagged when Travel is not in the catalog", res.Content.SelectedTag)
	}
}

func TestResponse_ControlCharacters(t *testing.T) {
	raw := `{"title":"Bad\u0007 title\nhere","summary":"tab\there\u0085","narrative":"line one\nline two\u0000\r\nline three","selectedTag":"Health"}`

	res := Response(raw, catalog)
	if res.Degraded {
		t.Fatalf("Degraded = true, reason %q", res.Reason)
	}
	c := res.Content
	if c.Title != "Bad title here" {
		t.Errorf("Title = %q", c.Title)
	}
	if c.Summary != "tab here" {
		t.Errorf("Summary = %q", c.Summary)
	}
	if c.Narrative != "line one\nline two\nline three" {
		t.Errorf("Narrative = %q", c.Narrative)
	}
}

func TestResponse_EmptyTitle(t *testing.T) {
	res := Response(`{"title":"  ","summary":"b","narrative":"c","selectedTag":"Health"}`, catalog)
	if res.Content.Title != UntitledTitle {
		t.Errorf("Title = %q, want %q", res.Content.Title, UntitledTitle)
	}
}

func TestResponse_PlainTextStorage(t *testing.T) {
	// Quotes and angle brackets are stored verbatim, not escaped
	raw := `{"title":"\"Best\" <deals>","summary":"a & b","narrative":"c","selectedTag":"Shopping"}`
	res := Response(raw, catalog)
	if res.Content.Title != `"Best" <deals>` {
		t.Errorf("Title = %q", res.Content.Title)
	}
	if res.Content.Summary != "a & b" {
		t.Errorf("Summary = %q", res.Content.Summary)
	}
}

func TestResponse_Total(t *testing.T) {
	inputs := []string{
		"",
		"{",
		"}",
		"}{",
		"```",
		"{{{{}}}}",
		`{"title": "\ud800"}`,
		strings.Repeat("{\"a\":", 500),
		"\x00\x01\x02",
		"null",
		`{"title":"a","summary":"b","narrative":"c","selectedTag":null}`,
	}
	for _, in := range inputs {
		res := Response(in, catalog)
		if res.Content.Title == "" {
			t.Errorf("Response(%q) produced empty title", in)
		}
		if res.Content.SelectedTag == "" {
			t.Errorf("Response(%q) produced empty tag", in)
		}
	}
}
