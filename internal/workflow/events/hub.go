package events

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event is one routing-engine transition broadcast to external collaborators.
// One topic per transition kind (document.created, approval.advanced, ...);
// delivery is fire-and-forget and per-card ordering is preserved because every
// card has a single writer.
type Event struct {
	Topic              string    `json:"topic"`
	TrackingID         string    `json:"tracking_id"`
	CardID             string    `json:"card_id,omitempty"`
	RecipientIDs       []string  `json:"recipient_ids,omitempty"`
	CurrentRecipientID string    `json:"current_recipient_id,omitempty"`
	EscalationLevel    int       `json:"escalation_level"`
	At                 time.Time `json:"at"`
}

// Subscriber receives events for the topics it declared interest in.
type Subscriber struct {
	ID     string
	Topics map[string]bool // nil or empty means all topics
	Ch     chan Event
}

// Hub fans transitions out to SSE clients and in-process consumers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// GlobalHub is the singleton event hub instance
var GlobalHub = NewHub()

// NewHub creates a new event hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscriber)}
}

// Subscribe registers a consumer for the given topics (nil = all)
func (h *Hub) Subscribe(id string, topics []string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscriber{ID: id, Ch: make(chan Event, buffer)}
	if len(topics) > 0 {
		sub.Topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.Topics[t] = true
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[id] = sub
	log.Printf("[Events] Subscriber registered: id=%s (total: %d)", id, len(h.subs))
	return sub
}

// Unsubscribe removes a consumer and closes its channel
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		close(sub.Ch)
		delete(h.subs, id)
		log.Printf("[Events] Subscriber unregistered: id=%s (total: %d)", id, len(h.subs))
	}
}

// Publish delivers the event to every interested subscriber.
// Slow consumers are skipped, never waited on: the routing engine must not
// block on a collaborator.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.Topics != nil && !sub.Topics[ev.Topic] {
			continue
		}
		select {
		case sub.Ch <- ev:
		default:
			log.Printf("[Events] Subscriber %s buffer full, dropping %s", sub.ID, ev.Topic)
		}
	}
}

// Marshal renders the event payload for the SSE wire
func (ev Event) Marshal() string {
	data, _ := json.Marshal(ev)
	return string(data)
}
