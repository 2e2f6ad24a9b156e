package ops

import (
	"context"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
)

// ListTags returns the catalog. A catalog that was never written reads as the predefined tags.
func (s *Store) ListTags(ctx context.Context) ([]memo.Tag, error) {
	tags, found, err := s.loadTags(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return memo.PredefinedTags(), nil
	}
	return tags, nil
}

// TagNames returns the catalog names, not including Untagged.
func (s *Store) TagNames(ctx context.Context) ([]string, error) {
	tags, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}

// FindTag returns the catalog entry for name. Untagged resolves to its display entry.
func (s *Store) FindTag(ctx context.Context, name string) (memo.Tag, error) {
	if name == memo.Untagged {
		return memo.UntaggedTag(), nil
	}
	tags, err := s.ListTags(ctx)
	if err != nil {
		return memo.Tag{}, err
	}
	for _, t := range tags {
		if t.Name == name {
			return t, nil
		}
	}
	return memo.Tag{}, errors.NewNotFound("tag", name)
}

// lookupTagLocked returns the catalog spelling of name, matching exactly and
// then ignoring case. Untagged always matches. Callers hold s.mu.
func (s *Store) lookupTagLocked(ctx context.Context, name string) (string, bool, error) {
	if name == memo.Untagged {
		return name, true, nil
	}
	tags, err := s.ListTags(ctx)
	if err != nil {
		return "", false, err
	}
	for _, t := range tags {
		if t.Name == name {
			return t.Name, true, nil
		}
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) {
			return t.Name, true, nil
		}
	}
	return "", false, nil
}

// IsValidTag reports whether name is in the catalog or is Untagged.
func (s *Store) IsValidTag(ctx context.Context, name string) (bool, error) {
	_, err := s.FindTag(ctx, name)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// InitializeTags writes the predefined tags when no catalog exists. It reports whether it wrote.
func (s *Store) InitializeTags(ctx context.Context) (bool, error) {
	s.mu.Lock()
	_, found, err := s.loadTags(ctx)
	if err == nil && !found {
		err = s.local.Set(ctx, map[string]any{KeyTags: memo.PredefinedTags()})
	}
	s.mu.Unlock()
	if err != nil || found {
		return false, err
	}

	s.log.Info("tag catalog initialized", zap.Int("tags", len(memo.PredefinedTags())))
	s.afterWrite(ctx, events.Event{Kind: events.TagsChanged})
	return true, nil
}

// AddTagInput contains parameters for AddTag.
type AddTagInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Color must come from memo.Colors; empty picks one at random
	Color string `json:"color,omitempty"`
	// Icon defaults to memo.DefaultIcon
	Icon string `json:"icon,omitempty"`
}

// AddTag appends a tag to the catalog.
func (s *Store) AddTag(ctx context.Context, input AddTagInput) (*memo.Tag, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("tag name is required")
	}
	if strings.EqualFold(name, memo.Untagged) {
		return nil, errors.NewInvalidRequest("tag name Untagged is reserved")
	}

	color := strings.ToLower(strings.TrimSpace(input.Color))
	if color == "" {
		color = memo.Colors[rand.IntN(len(memo.Colors))]
	} else if !memo.ValidColor(color) {
		return nil, errors.NewInvalidRequest("unknown color: " + input.Color)
	}
	icon := strings.TrimSpace(input.Icon)
	if icon == "" {
		icon = memo.DefaultIcon
	}
	tag := memo.Tag{Name: name, Description: strings.TrimSpace(input.Description), Color: color, Icon: icon}

	s.mu.Lock()
	tags, err := s.ListTags(ctx)
	if err == nil {
		for _, t := range tags {
			// tag names are unique ignoring case
			if strings.EqualFold(t.Name, name) {
				err = errors.NewNameAlreadyExists(name)
				break
			}
		}
	}
	if err == nil {
		tags = append(tags, tag)
		err = s.local.Set(ctx, map[string]any{KeyTags: tags})
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("tag added", zap.String("name", name), zap.String("color", color))
	s.afterWrite(ctx, events.Event{Kind: events.TagsChanged, Tag: name})
	return &tag, nil
}

// DeleteTagOutput reports the result of DeleteTag.
type DeleteTagOutput struct {
	Name       string `json:"name"`
	Reassigned int    `json:"reassigned"`
}

// DeleteTag removes name from the catalog and moves its memos to Untagged.
// The catalog and the memo list are written in one atomic storage write.
func (s *Store) DeleteTag(ctx context.Context, name string) (*DeleteTagOutput, error) {
	if name == memo.Untagged {
		return nil, errors.NewInvalidRequest("Untagged cannot be deleted")
	}

	s.mu.Lock()
	out, err := s.deleteTagLocked(ctx, name)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("tag deleted", zap.String("name", name), zap.Int("reassigned", out.Reassigned))
	s.afterWrite(ctx, events.Event{Kind: events.TagsChanged, Tag: name})
	return out, nil
}

func (s *Store) deleteTagLocked(ctx context.Context, name string) (*DeleteTagOutput, error) {
	tags, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	kept := make([]memo.Tag, 0, len(tags))
	for _, t := range tags {
		if t.Name != name {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tags) {
		return nil, errors.NewNotFound("tag", name)
	}

	memos, err := s.loadMemos(ctx)
	if err != nil {
		return nil, err
	}
	reassigned := 0
	for i := range memos {
		if memos[i].Tag == name {
			memos[i].Tag = memo.Untagged
			reassigned++
		}
	}

	if err := s.local.Set(ctx, map[string]any{KeyTags: kept, KeyMemos: memos}); err != nil {
		return nil, err
	}
	return &DeleteTagOutput{Name: name, Reassigned: reassigned}, nil
}

// TagCount is the number of memos carrying one tag.
type TagCount struct {
	Tag   memo.Tag `json:"tag"`
	Count int      `json:"count"`
}

// TagCounts returns the memo count for every catalog tag, followed by Untagged.
func (s *Store) TagCounts(ctx context.Context) ([]TagCount, error) {
	tags, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	memos, err := s.loadMemos(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(tags)+1)
	for _, m := range memos {
		byName[m.Tag]++
	}

	counts := make([]TagCount, 0, len(tags)+1)
	for _, t := range tags {
		counts = append(counts, TagCount{Tag: t, Count: byName[t.Name]})
	}
	counts = append(counts, TagCount{Tag: memo.UntaggedTag(), Count: byName[memo.Untagged]})
	return counts, nil
}
