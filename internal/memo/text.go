package memo

import (
	"crypto/rand"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/html"
)

// NewID returns a fresh ULID string.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CountWords counts the words of text plus one per HTML start or end tag.
// Self-closing tags (<br/>) and comments are not counted. Plain text is
// counted as whitespace-separated words.
func CountWords(text string) int {
	count := 0
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way the count so far stands
			return count
		case html.TextToken:
			count += len(strings.Fields(string(z.Text())))
		case html.StartTagToken, html.EndTagToken:
			count++
		}
	}
}

// EstimateTokens converts a word count to an approximate token count (words × 1.3, rounded).
func EstimateTokens(words int) int {
	return int(math.Round(float64(words) * 1.3))
}

// chatTitleMax is the rune length a chat title is cut to.
const chatTitleMax = 50

// ChatTitle derives a saved chat title from its first user turn.
func ChatTitle(firstUser string) string {
	s := strings.TrimSpace(firstUser)
	if utf8.RuneCountInString(s) <= chatTitleMax {
		return s
	}
	runes := []rune(s)
	return string(runes[:chatTitleMax]) + "..."
}
