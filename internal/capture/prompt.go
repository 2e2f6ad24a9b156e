package capture

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hpungsan/webmemo/internal/memo"
)

// BuildPrompt returns the system prompt for one capture. tags is the catalog
// at call time; Untagged is always offered as the last choice.
func BuildPrompt(pageURL string, tags []memo.Tag) string {
	var b strings.Builder

	b.WriteString("You are an AI assistant that turns a fragment of a web page into a memo.\n")
	if domain := domainOf(pageURL); domain != "" {
		fmt.Fprintf(&b, "The fragment was captured from %s (%s).\n", domain, pageURL)
	} else if pageURL != "" {
		fmt.Fprintf(&b, "The fragment was captured from %s.\n", pageURL)
	}
	b.WriteString(`
Your task is to:
1. Generate a concise but descriptive title for the content.
2. Write a brief summary of 2-3 sentences.
3. If any part of the content is structured data, such as a table, a list of
   specifications or key-value pairs, convert it to clean JSON.
4. Write a comprehensive narrative in proper English that conveys the entire
   content, including anything you put in the structured data.
5. Select exactly one tag from the list below that best fits the content.

Available tags:
`)
	for _, t := range tags {
		if t.Name == memo.Untagged {
			continue
		}
		if t.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", t.Name)
		}
	}
	fmt.Fprintf(&b, "- %s: use only when no other tag fits\n", memo.Untagged)

	b.WriteString(`
Respond with a single JSON object and nothing else, using exactly these fields:
{
  "title": "string",
  "summary": "string",
  "narrative": "string",
  "structuredData": <any JSON value, or null when there is none>,
  "selectedTag": "one of the tag names above"
}`)
	return b.String()
}

// domainOf returns the host of rawURL, or "" when it has none.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// defaultFavicon returns origin + "/favicon.ico" for rawURL, or "" when the
// URL has no scheme and host.
func defaultFavicon(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}
