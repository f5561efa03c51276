package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of notifications retained.
const DefaultCapacity = 50

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDFunc overrides ID generation.
func WithIDFunc(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// Store is a bounded notification list. The unread counter is maintained
// incrementally and always equals the number of retained unread entries.
type Store struct {
	capacity int
	now      func() time.Time
	newID    func() string

	mu     sync.RWMutex
	items  []Notification // most recent first
	unread int
}

// New creates a store retaining at most capacity entries. A capacity
// below one uses DefaultCapacity.
func New(capacity int, opts ...Option) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	s := &Store{
		capacity: capacity,
		now:      time.Now,
		newID:    newID,
		items:    make([]Notification, 0, capacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newID returns a time-ordered UUID.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Add synthesizes a notification from raw, prepends it and evicts the
// oldest entries beyond capacity.
func (s *Store) Add(raw Raw) Notification {
	n := Notification{
		ID:        s.newID(),
		Type:      raw.Type,
		Title:     raw.Title,
		Message:   raw.Message,
		Data:      raw.Data,
		Timestamp: s.now().UTC(),
		Priority:  raw.Priority,
	}
	if n.Type == "" {
		n.Type = TypeMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, Notification{})
	copy(s.items[1:], s.items)
	s.items[0] = n
	s.unread++

	if len(s.items) > s.capacity {
		for _, evicted := range s.items[s.capacity:] {
			if !evicted.Read {
				s.unread--
			}
		}
		clear(s.items[s.capacity:])
		s.items = s.items[:s.capacity]
	}

	return n
}

// MarkRead flips the identified entry to read. It reports whether the
// unread counter changed; repeated calls are no-ops.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if s.items[i].Read {
			return false
		}
		s.items[i].Read = true
		if s.unread > 0 {
			s.unread--
		}
		return true
	}
	return false
}

// MarkAllRead marks every retained entry read.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
}

// ClearAll empties the store.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.items)
	s.items = s.items[:0]
	s.unread = 0
}

// List returns a copy of the retained entries, most recent first.
func (s *Store) List() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the entry with id.
func (s *Store) Get(id string) (Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// UnreadCount returns the number of unread entries.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Capacity returns the retention bound.
func (s *Store) Capacity() int {
	return s.capacity
}
