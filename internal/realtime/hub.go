package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"snapify/pkg/logger"
)

// Publisher delivers a message to every current subscriber of an event.
// Delivery is best effort: nothing is stored or replayed.
type Publisher interface {
	Publish(ctx context.Context, eventID string, msg Message)
}

// Forwarder carries envelopes to other instances.
type Forwarder interface {
	Forward(ctx context.Context, env Envelope) error
}

// Hub keeps the subscribers of each event room on this instance.
type Hub struct {
	instance string
	buffer   int
	log      *logger.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
	relay Forwarder

	published atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a hub whose subscribers buffer up to buffer envelopes.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	return &Hub{
		instance: uuid.NewString(),
		buffer:   buffer,
		log:      logger.Named("realtime"),
		rooms:    make(map[string]map[*Subscription]struct{}),
	}
}

// Instance identifies this hub on the relay.
func (h *Hub) Instance() string { return h.instance }

// SetRelay makes Publish also forward to other instances.
func (h *Hub) SetRelay(f Forwarder) {
	h.mu.Lock()
	h.relay = f
	h.mu.Unlock()
}

// Subscription receives envelopes for one event, in publish order.
type Subscription struct {
	EventID string
	C       <-chan Envelope

	ch     chan Envelope
	hub    *Hub
	closed bool
}

func (h *Hub) Subscribe(eventID string) *Subscription {
	ch := make(chan Envelope, h.buffer)
	sub := &Subscription{EventID: eventID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	room := h.rooms[eventID]
	if room == nil {
		room = make(map[*Subscription]struct{})
		h.rooms[eventID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if room := h.rooms[s.EventID]; room != nil {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, s.EventID)
		}
	}
	close(s.ch)
}

// Publish delivers msg locally and, when a relay is set, to other instances.
func (h *Hub) Publish(ctx context.Context, eventID string, msg Message) {
	env, err := NewEnvelope(eventID, h.instance, msg)
	if err != nil {
		h.log.Error("%v", err)
		return
	}
	h.published.Add(1)
	h.Deliver(env)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Forward(ctx, env); err != nil {
			h.log.Warn("relay %s for %s failed: %v", env.Type, eventID, err)
		}
	}
}

// Deliver hands env to the local subscribers of its event. A subscriber whose
// buffer is full misses the message.
func (h *Hub) Deliver(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[env.EventID] {
		select {
		case sub.ch <- env:
		default:
			h.dropped.Add(1)
			h.log.Warn("subscriber of %s is slow, dropped %s", env.EventID, env.Type)
		}
	}
}

type HubStats struct {
	Rooms       int   `json:"rooms"`
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st := HubStats{Rooms: len(h.rooms), Published: h.published.Load(), Dropped: h.dropped.Load()}
	for _, room := range h.rooms {
		st.Subscribers += len(room)
	}
	return st
}
