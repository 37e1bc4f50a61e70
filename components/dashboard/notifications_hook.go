package dashboard

import "context"

// NotificationsClient defines the minimal interface needed from an external notifications service.
type NotificationsClient interface {
	PublishEntityEvent(ctx context.Context, channel string, event EntityEvent) error
}

// NotificationsHook forwards entity events to an external notifications client.
type NotificationsHook struct {
	Client  NotificationsClient
	Channel string
}

// EntityUpdated publishes events to the configured notifications client.
func (h *NotificationsHook) EntityUpdated(ctx context.Context, event EntityEvent) error {
	if h == nil || h.Client == nil {
		return nil
	}
	return h.Client.PublishEntityEvent(ctx, h.Channel, event)
}

// MultiHook fans an event out to several hooks, stopping at the first error.
type MultiHook []RefreshHook

// EntityUpdated calls each hook in order.
func (m MultiHook) EntityUpdated(ctx context.Context, event EntityEvent) error {
	for _, h := range m {
		if h == nil {
			continue
		}
		if err := h.EntityUpdated(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
