package cart

import (
	"sync"
	"time"
)

// Store keeps carts per browser session. Carts are ephemeral by design:
// they live here until checkout clears them or the TTL runs out, durable
// storage only ever sees the checkout snapshot.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
}

type entry struct {
	cart      Cart
	expiresAt time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
	}
}

func (s *Store) Get(sessionID string) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	if e, ok := s.sessions[sessionID]; ok {
		return e.cart
	}
	return Cart{}
}

func (s *Store) Put(sessionID string, c Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	s.sessions[sessionID] = &entry{
		cart:      c,
		expiresAt: time.Now().Add(s.ttl),
	}
}

func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Store) sweepLocked() {
	now := time.Now()
	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, id)
		}
	}
}
