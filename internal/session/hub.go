package session

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/twentyone/internal/protocol"
)

const subscriberBuffer = 64

// Hub fans protocol events out to per-session subscribers. Publishing
// never blocks: a subscriber that stops draining its channel is
// dropped.
type Hub struct {
	logger *log.Logger

	mu   sync.Mutex
	subs map[string]map[*Subscriber]bool
}

// Subscriber is one listener on a session's event feed.
type Subscriber struct {
	hub *Hub
	id  string
	ch  chan *protocol.Message
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[*Subscriber]bool),
	}
}

// Subscribe registers a listener for the given session.
func (h *Hub) Subscribe(id string) *Subscriber {
	sub := &Subscriber{
		hub: h,
		id:  id,
		ch:  make(chan *protocol.Message, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[*Subscriber]bool)
	}
	h.subs[id][sub] = true
	return sub
}

// C is the subscriber's event channel. It is closed when the
// subscriber is dropped or its session removed.
func (s *Subscriber) C() <-chan *protocol.Message {
	return s.ch
}

// Close unsubscribes.
func (s *Subscriber) Close() {
	s.hub.remove(s.id, s)
}

// Publish delivers an event to every subscriber of the session. A
// subscriber with a full buffer is dropped rather than blocking play.
func (h *Hub) Publish(id string, msg *protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[id] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("Subscriber buffer full, dropping subscriber", "game_id", id)
			h.removeLocked(id, sub)
		}
	}
}

// CloseSession drops every subscriber of the session, closing their
// channels.
func (h *Hub) CloseSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[id] {
		h.removeLocked(id, sub)
	}
}

func (h *Hub) remove(id string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id, sub)
}

func (h *Hub) removeLocked(id string, sub *Subscriber) {
	subs := h.subs[id]
	if subs == nil || !subs[sub] {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, id)
	}
	close(sub.ch)
}
