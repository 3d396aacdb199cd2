package session

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/twentyone/internal/game"
)

const sweepInterval = time.Minute

type memoryEntry struct {
	state     game.State
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. A background sweep
// removes expired entries; Load also checks expiry so a stale entry is
// never served between sweeps.
type MemoryStore struct {
	clock quartz.Clock

	mu    sync.RWMutex
	items map[string]memoryEntry

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewMemoryStore creates a store and starts its expiry sweep.
func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}

	s := &MemoryStore{
		clock: clock,
		items: make(map[string]memoryEntry),
		stop:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweep()
	return s
}

func (s *MemoryStore) Load(_ context.Context, id string) (game.State, bool, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()

	if !ok || s.expired(e) {
		return game.State{}, false, nil
	}
	return e.state, true, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, st game.State, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl)
	}
	s.put(id, st, expiresAt)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Close stops the expiry sweep.
func (s *MemoryStore) Close() error {
	close(s.stop)
	s.wg.Wait()
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) put(id string, st game.State, expiresAt time.Time) {
	s.mu.Lock()
	s.items[id] = memoryEntry{state: st, expiresAt: expiresAt}
	s.mu.Unlock()
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && s.clock.Now().After(e.expiresAt)
}

func (s *MemoryStore) sweep() {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.items {
		if s.expired(e) {
			delete(s.items, id)
		}
	}
}
