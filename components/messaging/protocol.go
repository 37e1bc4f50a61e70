package messaging

import (
	"time"

	"github.com/goccy/go-json"
)

// Event names exchanged over the real-time channel.
const (
	EventAddUser        = "add-user"
	EventOnlineUsers    = "online-users"
	EventTyping         = "typing"
	EventReceiveMessage = "receive-message"
	EventMarkRead       = "mark-read"
	EventMessagesRead   = "messages-read"
	EventGroupMessage   = "group-message"
	EventPrivateMessage = "private-message"

	// EventEntityUpdated carries a dashboard.EntityEvent when a table changed.
	EventEntityUpdated = "entity-updated"
)

// DefaultTypingTTL is how long a typing signal stays visible.
const DefaultTypingTTL = 3 * time.Second

// Envelope is one frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// ConversationKind is direct or group.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Conversation is one chat thread in the sidebar.
type Conversation struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Kind ConversationKind `json:"kind"`
	// Peer is the other participant of a direct conversation.
	Peer string `json:"peer,omitempty"`
	// Members are the participants of a group conversation.
	Members []string `json:"members,omitempty"`
	Unread  int      `json:"unread"`
}

// Message is a chat message. ID is assigned by the sending client.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	From           string    `json:"from"`
	To             string    `json:"to,omitempty"`
	Members        []string  `json:"members,omitempty"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
	ReadBy         []string  `json:"readBy,omitempty"`
}

// ReadByUser reports whether user is among the readers.
func (m Message) ReadByUser(user string) bool {
	for _, id := range m.ReadBy {
		if id == user {
			return true
		}
	}
	return false
}

// AddUser registers the connection for a user id.
type AddUser struct {
	UserID string `json:"userId"`
}

// Typing signals that UserID is composing in ConversationID.
type Typing struct {
	ConversationID string   `json:"conversationId"`
	UserID         string   `json:"userId"`
	To             []string `json:"to,omitempty"`
}

// ReadReceipt is sent as mark-read and relayed as messages-read.
type ReadReceipt struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
	UserID         string   `json:"userId"`
	// To is the original sender the receipt is relayed to.
	To string `json:"to,omitempty"`
}
