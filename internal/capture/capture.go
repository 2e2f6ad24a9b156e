// Package capture turns a captured HTML fragment into a persisted memo.
package capture

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
	"github.com/hpungsan/webmemo/internal/normalize"
	"github.com/hpungsan/webmemo/internal/sanitize"
)

// Completer is the model call the pipeline needs.
type Completer interface {
	HasCredential() bool
	Complete(ctx context.Context, system string, messages []memo.Message) (string, error)
}

// Store is the persistence the pipeline needs.
type Store interface {
	ListTags(ctx context.Context) ([]memo.Tag, error)
	CreateMemo(ctx context.Context, m memo.Memo) (*memo.Memo, error)
}

// Input is one captured fragment.
type Input struct {
	URL     string `json:"url"`
	Favicon string `json:"favicon,omitempty"`
	// Timestamp defaults to now
	Timestamp time.Time `json:"timestamp,omitempty"`
	RawHTML   string    `json:"rawHtml"`
}

// Pipeline runs captures. It is safe for concurrent use.
type Pipeline struct {
	model Completer
	store Store
	bus   *events.Bus
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Pipeline. bus and log may be nil.
func New(model Completer, store Store, bus *events.Bus, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		model: model,
		store: store,
		bus:   bus,
		log:   log.With(zap.String("component", "capture")),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Capture sanitizes in.RawHTML, asks the model to read it, normalizes the
// answer and stores the resulting memo. Nothing is stored on error.
// A response the model got wrong is not an error: it becomes a degraded memo.
func (p *Pipeline) Capture(ctx context.Context, in Input) (*memo.Memo, error) {
	if !p.model.HasCredential() {
		return nil, p.fail(in.URL, errors.NewCredentialMissing())
	}

	clean := sanitize.Fragment(in.RawHTML)
	if strings.TrimSpace(clean) == "" {
		return nil, p.fail(in.URL, errors.NewInvalidRequest("captured fragment is empty after sanitizing"))
	}

	p.bus.Publish(events.Event{Kind: events.CaptureStarted, Reason: in.URL})

	tags, err := p.store.ListTags(ctx)
	if err != nil {
		return nil, p.fail(in.URL, internal(err))
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}

	raw, err := p.model.Complete(ctx, BuildPrompt(in.URL, tags), []memo.Message{
		{Role: memo.RoleUser, Content: clean},
	})
	if err != nil {
		return nil, p.fail(in.URL, err)
	}

	result := normalize.Response(raw, names)
	if result.Degraded {
		p.log.Warn("model response degraded", zap.String("url", in.URL), zap.String("reason", result.Reason))
	}

	// ID is assigned by the store
	m := memo.Memo{
		URL:            in.URL,
		Favicon:        in.Favicon,
		Timestamp:      in.Timestamp,
		SourceHTML:     clean,
		Title:          result.Content.Title,
		Summary:        result.Content.Summary,
		Narrative:      result.Content.Narrative,
		StructuredData: result.Content.StructuredData,
		Tag:            result.Content.SelectedTag,
	}
	if m.Favicon == "" {
		m.Favicon = defaultFavicon(in.URL)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = p.now()
	}
	// the catalog may have changed during the model call; CreateMemo re-checks the tag
	saved, err := p.store.CreateMemo(ctx, m)
	if err != nil {
		return nil, p.fail(in.URL, internal(err))
	}

	p.log.Info("memo captured",
		zap.String("id", saved.ID),
		zap.String("tag", saved.Tag),
		zap.Bool("degraded", result.Degraded),
	)
	p.bus.Publish(events.Event{Kind: events.CaptureCompleted, MemoID: saved.ID, Tag: saved.Tag})
	return saved, nil
}

// fail logs err, publishes capture.failed and returns err.
func (p *Pipeline) fail(pageURL string, err error) error {
	p.log.Warn("capture failed", zap.String("url", pageURL), zap.Error(err))
	reason := err.Error()
	if mErr, ok := errors.As(err); ok {
		reason = mErr.Message
	}
	p.bus.Publish(events.Event{Kind: events.CaptureFailed, Reason: reason})
	return err
}

// internal keeps MemoErrors and wraps anything else as INTERNAL.
func internal(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewInternal(err)
}
