package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationCenterExpires(t *testing.T) {
	center := NewNotificationCenter(0)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	center.now = func() time.Time { return now }

	center.Notify(context.Background(), Notification{Level: LevelSuccess, Title: "Saved"})
	active := center.Active()
	require.Len(t, active, 1)
	assert.NotEmpty(t, active[0].ID)
	assert.Equal(t, now.Add(DefaultNotificationTTL), active[0].ExpiresAt)

	now = now.Add(DefaultNotificationTTL)
	assert.Empty(t, center.Active())
}

func TestNotificationCenterDismiss(t *testing.T) {
	center := NewNotificationCenter(time.Minute)
	center.Notify(context.Background(), Notification{ID: "n1", Title: "One"})
	center.Notify(context.Background(), Notification{ID: "n2", Title: "Two"})

	assert.True(t, center.Dismiss("n1"))
	assert.False(t, center.Dismiss("n1"))
	active := center.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "n2", active[0].ID)
}

type describedError struct{}

func (describedError) Error() string       { return "status 400" }
func (describedError) Description() string { return "Order number already exists" }

func TestNotifyErrorUsesDescription(t *testing.T) {
	rec := &recordingNotifier{}
	notifyError(context.Background(), rec, "Failed", describedError{})
	assert.Equal(t, "Order number already exists", rec.last().Description)
	notifyError(context.Background(), rec, "Failed", errors.New("plain"))
	assert.Equal(t, "plain", rec.last().Description)
}

type recordingNotificationsClient struct {
	channel string
	events  []EntityEvent
	err     error
}

func (c *recordingNotificationsClient) PublishEntityEvent(_ context.Context, channel string, event EntityEvent) error {
	c.channel = channel
	c.events = append(c.events, event)
	return c.err
}

func TestNotificationsHookAndMultiHook(t *testing.T) {
	client := &recordingNotificationsClient{}
	recorder := &recordingHook{}
	hook := MultiHook{&NotificationsHook{Client: client, Channel: "supply"}, nil, recorder}

	event := EntityEvent{Entity: EntitySuppliers, Reason: ReasonRowCreated}
	require.NoError(t, hook.EntityUpdated(context.Background(), event))
	assert.Equal(t, "supply", client.channel)
	assert.Len(t, recorder.events, 1)

	client.err = errBackend
	assert.ErrorIs(t, hook.EntityUpdated(context.Background(), event), errBackend)
	assert.Len(t, recorder.events, 1)

	var empty *NotificationsHook
	assert.NoError(t, empty.EntityUpdated(context.Background(), event))
}
