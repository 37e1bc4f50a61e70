package messaging

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

var _ dashboard.NotificationsClient = (*Hub)(nil)

// Hub is a minimal relay for the messaging events. It tracks which users are
// connected, broadcasts online-users on every change and routes messages,
// typing signals and read receipts to their recipients. Nothing is stored.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu    sync.RWMutex
	conns map[string]map[*hubConn]struct{}
}

type hubConn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	userID string
}

func (c *hubConn) send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// NewHub builds a hub. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) *Hub {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   l.With().Str("component", "messaging.hub").Logger(),
		conns:    map[string]map[*hubConn]struct{}{},
	}
}

// Online returns the connected user ids sorted.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.conns))
	for id := range h.conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ServeHTTP upgrades the request and relays frames until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn := &hubConn{ws: ws}
	defer func() {
		h.unregister(conn)
		ws.Close()
	}()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		h.route(conn, env)
	}
}

// route relays a frame on behalf of conn. Sender fields are stamped with the
// registered user id; frames before add-user are dropped.
func (h *Hub) route(conn *hubConn, env Envelope) {
	if env.Event == EventAddUser {
		var add AddUser
		if err := json.Unmarshal(env.Data, &add); err != nil || add.UserID == "" {
			return
		}
		h.register(conn, add.UserID)
		return
	}
	from := h.identity(conn)
	if from == "" {
		h.logger.Debug().Str("event", env.Event).Msg("dropping frame from unregistered connection")
		return
	}
	switch env.Event {
	case EventPrivateMessage:
		var m Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return
		}
		m.From = from
		h.deliver(EventReceiveMessage, m, m.To)
	case EventGroupMessage:
		var m Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return
		}
		m.From = from
		recipients := make([]string, 0, len(m.Members))
		for _, id := range m.Members {
			if id != from {
				recipients = append(recipients, id)
			}
		}
		h.deliver(EventReceiveMessage, m, recipients...)
	case EventTyping:
		var t Typing
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return
		}
		t.UserID = from
		to := t.To
		t.To = nil
		h.deliver(EventTyping, t, to...)
	case EventMarkRead:
		var receipt ReadReceipt
		if err := json.Unmarshal(env.Data, &receipt); err != nil {
			return
		}
		receipt.UserID = from
		h.deliver(EventMessagesRead, receipt, receipt.To)
	default:
		h.logger.Debug().Str("event", env.Event).Msg("ignoring event")
	}
}

func (h *Hub) identity(conn *hubConn) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.userID
}

func (h *Hub) register(conn *hubConn, userID string) {
	h.mu.Lock()
	if conn.userID != "" {
		h.removeLocked(conn)
	}
	conn.userID = userID
	if h.conns[userID] == nil {
		h.conns[userID] = map[*hubConn]struct{}{}
	}
	h.conns[userID][conn] = struct{}{}
	h.mu.Unlock()
	h.broadcastOnline()
}

func (h *Hub) unregister(conn *hubConn) {
	h.mu.Lock()
	registered := conn.userID != ""
	h.removeLocked(conn)
	h.mu.Unlock()
	if registered {
		h.broadcastOnline()
	}
}

func (h *Hub) removeLocked(conn *hubConn) {
	set := h.conns[conn.userID]
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, conn.userID)
	}
}

func (h *Hub) broadcastOnline() {
	online := h.Online()
	h.deliver(EventOnlineUsers, online, online...)
}

// deliver sends one event to every connection of each recipient. Failures are dropped.
func (h *Hub) deliver(event string, payload any, recipients ...string) {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event).Msg("encode failed")
		return
	}
	h.mu.RLock()
	var targets []*hubConn
	for _, id := range recipients {
		for conn := range h.conns[id] {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()
	for _, conn := range targets {
		if err := conn.send(frame); err != nil {
			h.logger.Debug().Err(err).Str("event", event).Msg("deliver failed")
		}
	}
}

// PublishEntityEvent relays a table change to every connected user under channel,
// EventEntityUpdated when channel is empty.
func (h *Hub) PublishEntityEvent(_ context.Context, channel string, event dashboard.EntityEvent) error {
	if channel == "" {
		channel = EventEntityUpdated
	}
	h.deliver(channel, event, h.Online()...)
	return nil
}
