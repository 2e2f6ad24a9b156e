// Package events is the in-process notification bus.
//
// Delivery is at-most-once. Publish never blocks: an event is dropped for any
// subscriber whose buffer is full, and dropped entirely when nobody is
// subscribed. Subscribers that need the full state re-read the store.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names an event.
type Kind string

const (
	CaptureStarted   Kind = "capture.started"
	CaptureCompleted Kind = "capture.completed"
	CaptureFailed    Kind = "capture.failed"
	MemoDeleted      Kind = "memo.deleted"
	MemoRetagged     Kind = "memo.retagged"
	TagsChanged      Kind = "tags.changed"
	ChatsChanged     Kind = "chats.changed"
	StorageRestored  Kind = "storage.restored"
)

// Event is one notification.
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	MemoID string    `json:"memoId,omitempty"`
	Tag    string    `json:"tag,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Time   time.Time `json:"time"`
}

// DefaultBuffer is the per-subscriber queue length used when Subscribe gets 0.
const DefaultBuffer = 16

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
	log  *zap.Logger
}

// NewBus returns an empty bus.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs: make(map[uuid.UUID]*Subscription),
		log:  log.With(zap.String("component", "events")),
	}
}

// Subscription receives events until Close.
type Subscription struct {
	ID   uuid.UUID
	ch   chan Event
	bus  *Bus
	once sync.Once
}

// Events returns the receive channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.ID)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

// Subscribe registers a subscriber with the given buffer length.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{ID: uuid.New(), ch: make(chan Event, buffer), bus: b}

	b.mu.Lock()
	b.subs[s.ID] = s
	b.mu.Unlock()

	b.log.Debug("subscriber added", zap.String("subscriber", s.ID.String()))
	return s
}

// Publish delivers e to every subscriber that has room and returns how many
// received it. ID and Time are filled in when empty.
func (b *Bus) Publish(e Event) int {
	if b == nil {
		return 0
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for id, s := range b.subs {
		select {
		case s.ch <- e:
			delivered++
		default:
			b.log.Warn("dropping event; subscriber buffer full",
				zap.String("subscriber", id.String()),
				zap.String("kind", string(e.Kind)))
		}
	}
	return delivered
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
