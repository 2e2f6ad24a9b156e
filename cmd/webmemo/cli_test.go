package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/webmemo/internal/app"
	"github.com/hpungsan/webmemo/internal/config"
)

const modelReply = `{"title":"Trail runners","summary":"Light shoes.","narrative":"Good grip.","structuredData":{"weight":"250g"},"selectedTag":"Shopping"}`

// setupTestApp opens an app in a temp dir whose model calls go to a fake provider.
func setupTestApp(t *testing.T) *app.App {
	t.Helper()
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			System string `json:"system"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		text := modelReply
		if strings.Contains(body.System, "memos tagged as") {
			text = "About 250g [Trail runners]."
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
	t.Cleanup(model.Close)

	cfg := config.DefaultConfig()
	cfg.APIBaseURL = model.URL
	a, err := app.Open(context.Background(), t.TempDir(), cfg, nil)
	if err != nil {
		t.Fatalf("failed to open app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// withStdin replaces os.Stdin with a pipe carrying content.
func withStdin(t *testing.T, content string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	go func() {
		_, _ = w.WriteString(content)
		w.Close()
	}()
	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = old
		r.Close()
	})
}

// runCLI runs args and returns what the command wrote to stdout.
func runCLI(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	runErr := newCLIApp(a).Run(append([]string{"webmemo"}, args...))
	w.Close()
	os.Stdout = old
	return <-done, runErr
}

func captureMemo(t *testing.T, a *app.App) string {
	t.Helper()
	withStdin(t, "<article><h1>Trail runners</h1><p>250g</p><script>x()</script></article>")
	out, err := runCLI(t, a, "capture", "--url=https://shop.example.com/shoes")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	var m struct {
		ID      string `json:"id"`
		Tag     string `json:"tag"`
		Favicon string `json:"favicon"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	require.Equal(t, "Shopping", m.Tag)
	require.Equal(t, "https://shop.example.com/favicon.ico", m.Favicon)
	return m.ID
}

func TestCLICapture_RequiresKey(t *testing.T) {
	a := setupTestApp(t)
	withStdin(t, "<p>hello</p>")
	_, err := runCLI(t, a, "capture", "--url=https://example.com")
	if err == nil || !strings.Contains(err.Error(), "CREDENTIAL_MISSING") {
		t.Errorf("expected CREDENTIAL_MISSING, got %v", err)
	}
}

func TestCLIKey(t *testing.T) {
	a := setupTestApp(t)

	withStdin(t, "  sk-test \n")
	out, err := runCLI(t, a, "key", "set")
	require.NoError(t, err)
	require.JSONEq(t, `{"configured":true}`, out)
	require.Equal(t, "sk-test", a.Session.APIKey())

	out, err = runCLI(t, a, "key", "clear")
	require.NoError(t, err)
	require.JSONEq(t, `{"configured":false}`, out)
}

func TestCLIMemoCommands(t *testing.T) {
	a := setupTestApp(t)
	require.NoError(t, a.SetAPIKey(context.Background(), "sk-test"))

	id := captureMemo(t, a)

	out, err := runCLI(t, a, "list", "--tag=Shopping")
	require.NoError(t, err)
	var list listOutput
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, 1, list.Total)
	require.Equal(t, id, list.Memos[0].ID)

	out, err = runCLI(t, a, "show", "--narrative", id)
	require.NoError(t, err)
	require.Equal(t, "Good grip.\n", out)

	out, err = runCLI(t, a, "show", id)
	require.NoError(t, err)
	require.NotContains(t, out, "x()")

	_, err = runCLI(t, a, "retag", id, "Nope")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("retag to unknown tag: expected NOT_FOUND, got %v", err)
	}
	out, err = runCLI(t, a, "retag", id, "Travel")
	require.NoError(t, err)
	require.Contains(t, out, `"tag": "Travel"`)

	_, err = runCLI(t, a, "delete", id)
	require.NoError(t, err)
	_, err = runCLI(t, a, "show", id)
	if err == nil {
		t.Error("expected error showing a deleted memo")
	}
}

func TestCLITags(t *testing.T) {
	a := setupTestApp(t)

	out, err := runCLI(t, a, "tags", "add", "--name=Garden", "--color=green")
	require.NoError(t, err)
	require.Contains(t, out, `"name": "Garden"`)

	_, err = runCLI(t, a, "tags", "add", "--name=garden")
	if err == nil || !strings.Contains(err.Error(), "NAME_ALREADY_EXISTS") {
		t.Errorf("expected NAME_ALREADY_EXISTS, got %v", err)
	}

	out, err = runCLI(t, a, "tags")
	require.NoError(t, err)
	var counts struct {
		Tags []struct {
			Tag struct {
				Name string `json:"name"`
			} `json:"tag"`
		} `json:"tags"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	require.Equal(t, "Untagged", counts.Tags[len(counts.Tags)-1].Tag.Name)

	_, err = runCLI(t, a, "tags", "delete", "Garden")
	require.NoError(t, err)
	_, err = runCLI(t, a, "tags", "delete", "Untagged")
	if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("expected INVALID_REQUEST deleting Untagged, got %v", err)
	}
}

func TestCLIChat(t *testing.T) {
	a := setupTestApp(t)
	require.NoError(t, a.SetAPIKey(context.Background(), "sk-test"))
	captureMemo(t, a)

	out, err := runCLI(t, a, "chat", "--tag=Shopping", "--save", "How", "heavy?")
	require.NoError(t, err)
	var reply chatOutput
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	require.Equal(t, "About 250g [Trail runners].", reply.Reply)
	require.Equal(t, []string{"Trail runners"}, reply.Citations)
	require.Equal(t, 1, reply.Memos)
	require.NotNil(t, reply.Saved)
	require.Equal(t, "How heavy?", reply.Saved.Title)

	out, err = runCLI(t, a, "chats", "list", "--tag=Shopping")
	require.NoError(t, err)
	require.Contains(t, out, reply.Saved.ID)

	out, err = runCLI(t, a, "chats", "show", reply.Saved.ID)
	require.NoError(t, err)
	require.Contains(t, out, "About 250g")

	_, err = runCLI(t, a, "chats", "delete", reply.Saved.ID)
	require.NoError(t, err)
}

func TestCLIBackupRestore(t *testing.T) {
	a := setupTestApp(t)

	out, err := runCLI(t, a, "backup")
	require.NoError(t, err)
	require.Contains(t, out, `"mode": "full"`)

	out, err = runCLI(t, a, "restore")
	require.NoError(t, err)
	require.Contains(t, out, `"restored": false`)

	out, err = runCLI(t, a, "usage")
	require.NoError(t, err)
	require.Contains(t, out, `"tier": "local"`)
	require.Contains(t, out, `"tier": "sync"`)
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	a := setupTestApp(t)

	t.Run("show without id", func(t *testing.T) {
		_, err := runCLI(t, a, "show")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("retag with one arg", func(t *testing.T) {
		_, err := runCLI(t, a, "retag", "abc")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("chat without question", func(t *testing.T) {
		withStdin(t, "")
		_, err := runCLI(t, a, "chat", "--tag=Travel")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("capture with bad timestamp", func(t *testing.T) {
		withStdin(t, "<p>x</p>")
		_, err := runCLI(t, a, "capture", "--url=https://example.com", "--timestamp=yesterday")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"webmemo"}, false},
		{"capture command", []string{"webmemo", "capture"}, true},
		{"serve command", []string{"webmemo", "serve"}, true},
		{"help flag", []string{"webmemo", "--help"}, true},
		{"short version flag", []string{"webmemo", "-v"}, true},
		{"unknown arg defaults to MCP", []string{"webmemo", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"webmemo"}, false},
		{"help flag", []string{"webmemo", "--help"}, true},
		{"help subcommand", []string{"webmemo", "help"}, true},
		{"version flag", []string{"webmemo", "--version"}, true},
		{"list command is not help", []string{"webmemo", "list"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestBaseDirectory(t *testing.T) {
	t.Setenv("WEBMEMO_HOME", "/tmp/webmemo-test")
	dir, err := baseDirectory()
	require.NoError(t, err)
	require.Equal(t, "/tmp/webmemo-test", dir)
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		withStdin(t, " small content \n")
		result, err := readStdin(1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "small content" {
			t.Errorf("expected %q, got %q", "small content", result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		withStdin(t, strings.Repeat("x", 100))
		if _, err := readStdin(50); err == nil {
			t.Error("expected error for content exceeding limit, got nil")
		}
	})
}
