package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

var (
	ErrClosed               = errors.New("messaging: connection closed")
	ErrNoActiveConversation = errors.New("messaging: no active conversation")
	ErrUnknownConversation  = errors.New("messaging: unknown conversation")
	ErrEmptyMessage         = errors.New("messaging: message body is empty")
)

// History loads the stored messages of a conversation.
type History interface {
	Messages(ctx context.Context, viewer dashboard.ViewerContext, conversationID string) ([]Message, error)
}

// Options configures a Client.
type Options struct {
	URL           string
	Viewer        dashboard.ViewerContext
	Header        http.Header
	Dialer        *websocket.Dialer
	Conversations []Conversation
	History       History
	Notifier      dashboard.Notifier
	Logger        *zerolog.Logger
	TypingTTL     time.Duration
	Now           func() time.Time
	// OnUpdate is called after every inbound event is applied.
	OnUpdate func(event string)
	// OnEntityUpdated receives table changes relayed by the hub.
	OnEntityUpdated func(dashboard.EntityEvent)
}

// Client is the messaging view: one WebSocket connection per mount holding
// conversations, the active thread, presence and typing state. Delivery is
// best effort and at most once. There is no reconnection.
type Client struct {
	opts   Options
	self   string
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once

	mu            sync.RWMutex
	conversations []Conversation
	active        string
	messages      []Message
	online        map[string]struct{}
	typing        map[string]typingSignal
	closed        bool
	readErr       error

	done chan struct{}
}

type typingSignal struct {
	conversation string
	at           time.Time
}

// Dial connects, announces the viewer with add-user and starts the read loop.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("messaging: url is required")
	}
	self := opts.Viewer.UserID
	if self == "" {
		return nil, errors.New("messaging: viewer id is required")
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if opts.Viewer.Token != "" && header.Get("Authorization") == "" {
		header.Set("Authorization", "Bearer "+opts.Viewer.Token)
	}
	conn, _, err := dialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		return nil, fmt.Errorf("messaging: dial %s: %w", opts.URL, err)
	}
	c := newClient(conn, opts)
	if err := c.emit(EventAddUser, AddUser{UserID: self}); err != nil {
		conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func newClient(conn *websocket.Conn, opts Options) *Client {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		opts:          opts,
		self:          opts.Viewer.UserID,
		conn:          conn,
		logger:        logger.With().Str("component", "messaging").Str("user", opts.Viewer.UserID).Logger(),
		conversations: append([]Conversation(nil), opts.Conversations...),
		online:        map[string]struct{}{},
		typing:        map[string]typingSignal{},
		done:          make(chan struct{}),
	}
}

// Close tears the connection down and waits for the read loop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	<-c.done
	return err
}

// Done is closed when the read loop stops.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the read loop, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readErr
}

func (c *Client) emit(event string, payload any) error {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("messaging: encode %s: %w", event, err)
	}
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("messaging: send %s: %w", event, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.readErr = err
				c.closed = true
			}
			c.mu.Unlock()
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if err := c.handle(env); err != nil {
			c.logger.Warn().Err(err).Str("event", env.Event).Msg("dropping event")
			continue
		}
		if c.opts.OnUpdate != nil {
			c.opts.OnUpdate(env.Event)
		}
	}
}

func (c *Client) handle(env Envelope) error {
	switch env.Event {
	case EventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			return err
		}
		c.setOnline(ids)
	case EventTyping:
		var t Typing
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return err
		}
		c.signalTyping(t)
	case EventReceiveMessage:
		var m Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return err
		}
		c.receive(m)
	case EventMessagesRead:
		var r ReadReceipt
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return err
		}
		c.applyReceipt(r)
	case EventEntityUpdated:
		var evt dashboard.EntityEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			return err
		}
		if c.opts.OnEntityUpdated != nil {
			c.opts.OnEntityUpdated(evt)
		}
	default:
		c.logger.Debug().Str("event", env.Event).Msg("ignoring event")
	}
	return nil
}

func (c *Client) setOnline(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.online[id] = struct{}{}
	}
}

func (c *Client) signalTyping(t Typing) {
	if t.UserID == "" || t.UserID == c.self {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing[t.UserID] = typingSignal{conversation: t.ConversationID, at: c.opts.Now()}
}

func (c *Client) receive(m Message) {
	ctx := context.Background()
	c.mu.Lock()
	delete(c.typing, m.From)
	idx := c.conversationIndex(m.ConversationID)
	if idx < 0 {
		conv := Conversation{ID: m.ConversationID, Name: m.From, Kind: KindDirect, Peer: m.From}
		if len(m.Members) > 0 {
			conv.Kind = KindGroup
			conv.Peer = ""
			conv.Members = append([]string(nil), m.Members...)
		}
		c.conversations = append(c.conversations, conv)
		idx = len(c.conversations) - 1
	}
	if m.ConversationID == c.active {
		c.messages = append(c.messages, m)
		c.mu.Unlock()
		if err := c.emit(EventMarkRead, ReadReceipt{
			ConversationID: m.ConversationID,
			MessageIDs:     []string{m.ID},
			UserID:         c.self,
			To:             m.From,
		}); err != nil {
			c.logger.Warn().Err(err).Msg("mark-read failed")
		}
		return
	}
	c.conversations[idx].Unread++
	name := c.conversations[idx].Name
	c.mu.Unlock()
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(ctx, dashboard.Notification{
			Level:       dashboard.LevelInfo,
			Title:       "New message in " + name,
			Description: preview(m.Body),
		})
	}
}

func (c *Client) applyReceipt(r ReadReceipt) {
	ids := make(map[string]struct{}, len(r.MessageIDs))
	for _, id := range r.MessageIDs {
		ids[id] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if _, ok := ids[c.messages[i].ID]; !ok {
			continue
		}
		if !c.messages[i].ReadByUser(r.UserID) {
			c.messages[i].ReadBy = append(c.messages[i].ReadBy, r.UserID)
		}
	}
}

func (c *Client) conversationIndex(id string) int {
	for i, conv := range c.conversations {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

// Conversations returns the sidebar list.
func (c *Client) Conversations() []Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Conversation(nil), c.conversations...)
}

// AddConversation registers a conversation unless one with the same id exists.
func (c *Client) AddConversation(conv Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationIndex(conv.ID) < 0 {
		c.conversations = append(c.conversations, conv)
	}
}

// Active returns the active conversation id.
func (c *Client) Active() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Open activates a conversation, loads its history and marks unread messages from others as read.
func (c *Client) Open(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	idx := c.conversationIndex(conversationID)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
	}
	c.active = conversationID
	c.conversations[idx].Unread = 0
	c.messages = nil
	c.mu.Unlock()

	if c.opts.History == nil {
		return nil
	}
	history, err := c.opts.History.Messages(ctx, c.opts.Viewer, conversationID)
	if err != nil {
		if c.opts.Notifier != nil {
			c.opts.Notifier.Notify(ctx, dashboard.Notification{Level: dashboard.LevelError, Title: "Failed to load messages", Description: err.Error()})
		}
		return err
	}
	unreadBySender := map[string][]string{}
	c.mu.Lock()
	if c.active == conversationID {
		c.messages = append(history, c.messages...)
	}
	for _, m := range history {
		if m.From != c.self && !m.ReadByUser(c.self) {
			unreadBySender[m.From] = append(unreadBySender[m.From], m.ID)
		}
	}
	c.mu.Unlock()
	senders := make([]string, 0, len(unreadBySender))
	for from := range unreadBySender {
		senders = append(senders, from)
	}
	sort.Strings(senders)
	for _, from := range senders {
		if err := c.emit(EventMarkRead, ReadReceipt{
			ConversationID: conversationID,
			MessageIDs:     unreadBySender[from],
			UserID:         c.self,
			To:             from,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Messages returns the active conversation's messages.
func (c *Client) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		m.ReadBy = append([]string(nil), m.ReadBy...)
		out[i] = m
	}
	return out
}

// Send posts body to the active conversation as a group or private message.
func (c *Client) Send(ctx context.Context, body string) (Message, error) {
	if strings.TrimSpace(body) == "" {
		return Message{}, ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	c.mu.RLock()
	idx := c.conversationIndex(c.active)
	if idx < 0 {
		c.mu.RUnlock()
		return Message{}, ErrNoActiveConversation
	}
	conv := c.conversations[idx]
	c.mu.RUnlock()

	msg := Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		From:           c.self,
		Body:           body,
		SentAt:         c.opts.Now().UTC(),
	}
	event := EventPrivateMessage
	if conv.Kind == KindGroup {
		event = EventGroupMessage
		msg.Members = append([]string(nil), conv.Members...)
	} else {
		msg.To = conv.Peer
	}
	if err := c.emit(event, msg); err != nil {
		if c.opts.Notifier != nil {
			c.opts.Notifier.Notify(ctx, dashboard.Notification{Level: dashboard.LevelError, Title: "Message not sent", Description: err.Error()})
		}
		return Message{}, err
	}
	c.mu.Lock()
	if c.active == conv.ID {
		c.messages = append(c.messages, msg)
	}
	c.mu.Unlock()
	return msg, nil
}

// Typing tells the other participants of the active conversation that the viewer is composing.
func (c *Client) Typing(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	idx := c.conversationIndex(c.active)
	if idx < 0 {
		c.mu.RUnlock()
		return ErrNoActiveConversation
	}
	conv := c.conversations[idx]
	c.mu.RUnlock()
	to := conv.Members
	if conv.Kind == KindDirect {
		to = []string{conv.Peer}
	}
	return c.emit(EventTyping, Typing{ConversationID: conv.ID, UserID: c.self, To: to})
}

// Online reports whether user is in the last online-users list.
func (c *Client) Online(user string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.online[user]
	return ok
}

// OnlineUsers returns the online set sorted.
func (c *Client) OnlineUsers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.online))
	for id := range c.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsTyping reports whether user signalled typing within the TTL.
func (c *Client) IsTyping(user string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sig, ok := c.typing[user]
	return ok && c.opts.Now().Sub(sig.at) < c.opts.TypingTTL
}

// TypingUsers returns users typing in conversationID and prunes expired signals.
func (c *Client) TypingUsers(conversationID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now()
	var out []string
	for user, sig := range c.typing {
		if now.Sub(sig.at) >= c.opts.TypingTTL {
			delete(c.typing, user)
			continue
		}
		if sig.conversation == conversationID {
			out = append(out, user)
		}
	}
	sort.Strings(out)
	return out
}

func preview(body string) string {
	const max = 80
	body = strings.TrimSpace(body)
	if len([]rune(body)) <= max {
		return body
	}
	return string([]rune(body)[:max]) + "…"
}
