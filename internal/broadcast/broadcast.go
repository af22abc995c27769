// Package broadcast is the best-effort fan-out of state-change events to
// whichever UI surfaces happen to be listening.
package broadcast

import (
	"encoding/json"
	"sync"
)

// Message types published by the coordinator.
const (
	TypeFocusStateUpdate = "FOCUS_STATE_UPDATE"
	TypeShameUpdate      = "SHAME_UPDATE"
	TypeNotification     = "NOTIFICATION"
	TypeRulesUpdate      = "RULES_UPDATE"

	TypePreferencesUpdate = "PREFERENCES_UPDATE"
)

// Message is one outbound event. Payload fields are flattened next to
// "type" when encoded, matching the extension runtime message shape.
type Message struct {
	Type    string
	Payload map[string]any
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Payload)+1)
	for k, v := range m.Payload {
		out[k] = v
	}
	out["type"] = m.Type
	return json.Marshal(out)
}

// Publisher accepts messages without any delivery guarantee.
type Publisher interface {
	Publish(msg Message)
}

// Hub fans messages out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the message.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Message
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Message)}
}

// Subscribe registers a listener with the given buffer size. The returned
// cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Publish(Message) {}
