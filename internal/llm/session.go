package llm

import (
	"strings"
	"sync"
)

// Session carries the model credential. One Session is built at startup and
// shared by every Client; SetAPIKey takes effect on the next call.
type Session struct {
	mu     sync.RWMutex
	apiKey string
}

// NewSession returns a session holding apiKey (may be empty).
func NewSession(apiKey string) *Session {
	return &Session{apiKey: strings.TrimSpace(apiKey)}
}

// APIKey returns the current credential.
func (s *Session) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// SetAPIKey replaces the credential.
func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	s.apiKey = strings.TrimSpace(key)
	s.mu.Unlock()
}

// HasCredential reports whether a credential is set.
func (s *Session) HasCredential() bool {
	return s.APIKey() != ""
}
