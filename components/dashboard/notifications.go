package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NotificationLevel is the toast severity.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// DefaultNotificationTTL is how long a toast stays active.
const DefaultNotificationTTL = 5 * time.Second

// Notification is a dismissible, auto-expiring message surfaced to the user.
type Notification struct {
	ID          string            `json:"id"`
	Level       NotificationLevel `json:"level"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Notifier receives user-facing feedback from views.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}

// NotificationCenter keeps active toasts in memory until they expire or are dismissed.
type NotificationCenter struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items []Notification
}

// NewNotificationCenter builds a center; ttl <= 0 uses DefaultNotificationTTL.
func NewNotificationCenter(ttl time.Duration) *NotificationCenter {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationCenter{ttl: ttl, now: time.Now}
}

// Notify stores n, filling id and timestamps when missing.
func (c *NotificationCenter) Notify(_ context.Context, n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.ExpiresAt.IsZero() {
		n.ExpiresAt = n.CreatedAt.Add(c.ttl)
	}
	c.items = append(c.items, n)
}

// Active returns non-expired notifications, pruning the expired ones.
func (c *NotificationCenter) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.items = kept
	return append([]Notification(nil), kept...)
}

// Dismiss removes a notification by id.
func (c *NotificationCenter) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func notifySuccess(ctx context.Context, n Notifier, title, description string) {
	n.Notify(ctx, Notification{Level: LevelSuccess, Title: title, Description: description})
}

func notifyError(ctx context.Context, n Notifier, title string, err error) {
	n.Notify(ctx, Notification{Level: LevelError, Title: title, Description: describeError(err)})
}

func describeError(err error) string {
	if err == nil {
		return ""
	}
	var described interface{ Description() string }
	if errors.As(err, &described) {
		return described.Description()
	}
	return err.Error()
}
