package dashboard

import (
	"context"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// BroadcastHook fans out entity events to in-process subscribers so open
// tables and the summary can reload after a write elsewhere.
type BroadcastHook struct {
	mu   sync.RWMutex
	subs map[int]subscription
	next int
}

type subscription struct {
	entity string
	ch     chan EntityEvent
}

// NewBroadcastHook creates a broadcast hook.
func NewBroadcastHook() *BroadcastHook {
	return &BroadcastHook{subs: make(map[int]subscription)}
}

// EntityUpdated satisfies RefreshHook. Slow subscribers drop events.
func (h *BroadcastHook) EntityUpdated(_ context.Context, event EntityEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.entity != "" && sub.entity != event.Entity {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of all entity events and a cancel func.
func (h *BroadcastHook) Subscribe() (<-chan EntityEvent, func()) {
	return h.SubscribeEntity("")
}

// SubscribeEntity only delivers events for entity ("" means all).
func (h *BroadcastHook) SubscribeEntity(entity string) (<-chan EntityEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan EntityEvent, 8)
	h.subs[id] = subscription{entity: entity, ch: ch}
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (h *BroadcastHook) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and streams entity events as JSON.
// The optional ?entity= query narrows the stream.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer conn.Close()

	events, cancel := h.SubscribeEntity(r.URL.Query().Get("entity"))
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// ServeSSE provides a Server-Sent Events endpoint for entity events.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	events, cancel := h.SubscribeEntity(r.URL.Query().Get("entity"))
	defer cancel()

	encoder := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			if err := encoder.Encode(event); err != nil {
				return
			}
			w.Write([]byte("\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
