// Package chat grounds a model conversation in the memos of one tag.
package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hpungsan/webmemo/internal/memo"
)

// SelectGroundingSet returns the memos whose tag is exactly tagName, in order.
func SelectGroundingSet(memos []memo.Memo, tagName string) []memo.Memo {
	out := make([]memo.Memo, 0)
	for _, m := range memos {
		if m.Tag == tagName {
			out = append(out, m)
		}
	}
	return out
}

// BuildSystemPrompt embeds tag and memos in a system prompt. With useRaw each
// memo contributes its source HTML and URL; otherwise its narrative and
// structured data.
func BuildSystemPrompt(memos []memo.Memo, tag memo.Tag, useRaw bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a helpful assistant with access to a collection of memos tagged as %q.\n\n", tag.Name)
	b.WriteString("Keep this tag in mind when answering:\n")
	fmt.Fprintf(&b, "Tag: %s\n", tag.Name)
	fmt.Fprintf(&b, "Description: %s\n\n", tag.Description)

	b.WriteString("Prefer information from these memos when answering the user:\n\n")
	for i, m := range memos {
		fmt.Fprintf(&b, "[Memo %d]\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", m.Title)
		if useRaw {
			fmt.Fprintf(&b, "Source Content: %s\n", m.SourceHTML)
			fmt.Fprintf(&b, "URL: %s\n", m.URL)
		} else {
			fmt.Fprintf(&b, "Narrative: %s\n", m.Narrative)
			fmt.Fprintf(&b, "Structured Data: %s\n", structuredText(m))
		}
		b.WriteString("\n")
	}

	if useRaw {
		b.WriteString("You are working with the original source content of the memos. " +
			"Use it to give detailed answers that stay close to the source material.\n\n")
	} else {
		b.WriteString("You are working with the processed narratives and structured data of the memos. " +
			"Use them to give focused, organized answers.\n\n")
	}

	b.WriteString("You may add context from your general knowledge, but always make clear " +
		"which parts come from the memos and which do not.\n")
	b.WriteString("When you use information from a memo, cite it by its title in square brackets, " +
		"like [Title of Memo]. Cite every memo you draw on, where you use it.")
	return b.String()
}

func structuredText(m memo.Memo) string {
	if len(m.StructuredData) == 0 {
		return "null"
	}
	return string(m.StructuredData)
}

// Cost is a rough size estimate of a grounding set. It is not billing-accurate.
type Cost struct {
	WordCount        int `json:"wordCount"`
	ApproxTokenCount int `json:"approxTokenCount"`
}

// EstimateCost counts the words the grounding prompt will carry for memos.
// Adding a memo never lowers the count.
func EstimateCost(memos []memo.Memo, useRaw bool) Cost {
	words := 0
	for _, m := range memos {
		if useRaw {
			words += memo.CountWords(m.SourceHTML)
			continue
		}
		words += memo.CountWords(m.Narrative)
		if len(m.StructuredData) > 0 {
			words += memo.CountWords(string(m.StructuredData))
		}
	}
	return Cost{WordCount: words, ApproxTokenCount: memo.EstimateTokens(words)}
}

var citation = regexp.MustCompile(`\[([^\[\]\n]+)\]`)

// Citations returns the distinct bracketed titles in reply, in first-seen order.
func Citations(reply string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, match := range citation.FindAllStringSubmatch(reply, -1) {
		title := strings.TrimSpace(match[1])
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		out = append(out, title)
	}
	return out
}
