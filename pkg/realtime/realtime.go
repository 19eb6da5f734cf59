// Package realtime is the in-process publish/subscribe hub that fans
// saved-search match events out to listeners such as WebSocket sessions.
//
// Delivery is best effort: each listener has its own buffer, and an event
// arriving while a listener's buffer is full is dropped for that listener
// only. There is no persistence or replay.
package realtime

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeMatch     = "match"
	TypeHeartbeat = "heartbeat"
)

// MatchEvent reports a listing that newly matches a saved search.
type MatchEvent struct {
	SavedSearchID   string    `json:"savedSearchId"`
	SavedSearchName string    `json:"savedSearchName"`
	Token           string    `json:"token"`
	ListingID       string    `json:"listingId"`
	ListingName     string    `json:"listingName"`
	Suburb          string    `json:"suburb,omitempty"`
	State           string    `json:"state,omitempty"`
	WeeklyPrice     int       `json:"weeklyPrice"`
	DetectedAt      time.Time `json:"detectedAt"`
}

// Event is the envelope sent to listeners. Match is set for TypeMatch.
type Event struct {
	Type  string      `json:"type"`
	Match *MatchEvent `json:"match,omitempty"`
	At    time.Time   `json:"at"`
}

// Hub is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub creates a hub with the given per-listener buffer. bufSize <= 0
// means 32.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must Unregister the returned id.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers e to every listener, dropping it for full buffers. It
// returns the number of listeners that received it.
func (h *Hub) Broadcast(e Event) int {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.listeners {
		select {
		case ch <- e:
			delivered++
		default:
		}
	}
	return delivered
}

// PublishMatch wraps m in a match event and broadcasts it.
func (h *Hub) PublishMatch(m MatchEvent) int {
	return h.Broadcast(Event{Type: TypeMatch, Match: &m, At: m.DetectedAt})
}

// Size returns the number of listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
