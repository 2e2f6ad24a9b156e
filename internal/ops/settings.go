package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/webmemo/internal/storage"
)

// Credential returns the stored model API key, or "" when none is set.
func (s *Store) Credential(ctx context.Context) (string, error) {
	var key string
	if _, err := storage.Load(ctx, s.local, KeyAPIKey, &key); err != nil {
		return "", err
	}
	return key, nil
}

// SetCredential stores the model API key. An empty key clears it.
func (s *Store) SetCredential(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.Set(ctx, map[string]any{KeyAPIKey: strings.TrimSpace(key)})
}
