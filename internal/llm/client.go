// Package llm calls the hosted model's Messages endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/config"
	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/memo"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Version   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OptionsFromConfig maps the model settings of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:   cfg.APIBaseURL,
		Version:   cfg.APIVersion,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.RequestTimeout(),
	}
}

// Client sends one request per call; it never retries.
type Client struct {
	session    *Session
	opts       Options
	httpClient *http.Client
	log        *zap.Logger
}

// New builds a Client with its own transport.
func New(session *Session, opts Options, log *zap.Logger) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return NewWithHTTPClient(session, opts, &http.Client{Transport: tr}, log)
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(session *Session, opts Options, httpClient *http.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{
		session:    session,
		opts:       opts,
		httpClient: httpClient,
		log:        log.With(zap.String("component", "llm")),
	}
}

// HasCredential reports whether the session holds an API key.
func (c *Client) HasCredential() bool {
	return c.session != nil && c.session.HasCredential()
}

type messagesRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    string         `json:"system,omitempty"`
	Messages  []memo.Message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends system plus the conversation and returns the reply text.
// System-role entries in messages are folded into the system prompt.
//
// Errors: CREDENTIAL_MISSING before any network I/O, INVALID_REQUEST when no
// user or assistant turn is given, PROVIDER_ERROR for everything upstream
// including timeouts.
func (c *Client) Complete(ctx context.Context, system string, messages []memo.Message) (string, error) {
	if !c.HasCredential() {
		return "", errors.NewCredentialMissing()
	}

	systemParts := make([]string, 0, 2)
	if s := strings.TrimSpace(system); s != "" {
		systemParts = append(systemParts, s)
	}
	turns := make([]memo.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == memo.RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				systemParts = append(systemParts, s)
			}
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return "", errors.NewInvalidRequest("at least one user message is required")
	}

	reqBody := messagesRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		System:    strings.Join(systemParts, "\n\n"),
		Messages:  turns,
	}

	start := time.Now()
	var resp messagesResponse
	if err := c.doJSON(ctx, "/messages", reqBody, &resp); err != nil {
		c.log.Warn("model request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", err
	}

	if len(resp.Content) == 0 {
		return "", errors.NewProvider(http.StatusOK, "model returned empty content")
	}
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			c.log.Debug("model request completed",
				zap.Int("turns", len(turns)),
				zap.Int("reply_chars", len(block.Text)),
				zap.Duration("elapsed", time.Since(start)))
			return block.Text, nil
		}
	}
	return "", errors.NewProvider(http.StatusOK, "model returned no text content")
}

func (c *Client) doJSON(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return errors.NewInternal(err)
	}

	ctx2, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.opts.BaseURL+path, &buf)
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.session.APIKey())
	req.Header.Set("anthropic-version", c.opts.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case stderrors.Is(ctx2.Err(), context.DeadlineExceeded):
			return errors.NewProvider(0, fmt.Sprintf("model request timed out after %s", c.opts.Timeout))
		case stderrors.Is(ctx.Err(), context.Canceled):
			return errors.NewProvider(0, "model request canceled")
		}
		return errors.NewProvider(0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		if stderrors.Is(ctx2.Err(), context.DeadlineExceeded) {
			return errors.NewProvider(0, fmt.Sprintf("model request timed out after %s", c.opts.Timeout))
		}
		return errors.NewProvider(resp.StatusCode, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env errorEnvelope
		_ = json.Unmarshal(raw, &env)
		return errors.NewProvider(resp.StatusCode, env.Error.Message)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewProvider(resp.StatusCode, "malformed response body: "+err.Error())
	}
	return nil
}
