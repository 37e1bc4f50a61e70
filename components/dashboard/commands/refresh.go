package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// RefreshEntityInput announces that an entity changed outside the dashboard.
type RefreshEntityInput struct {
	Event dashboard.EntityEvent `json:"event"`
}

// RefreshEntityCommand pushes an event through the refresh hook so open views refetch.
type RefreshEntityCommand struct {
	hook      dashboard.RefreshHook
	telemetry Telemetry
}

// NewRefreshEntityCommand creates the command.
func NewRefreshEntityCommand(hook dashboard.RefreshHook, telemetry Telemetry) *RefreshEntityCommand {
	return &RefreshEntityCommand{hook: hook, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RefreshEntityInput] = (*RefreshEntityCommand)(nil)

// Execute publishes the event.
func (c *RefreshEntityCommand) Execute(ctx context.Context, msg RefreshEntityInput) error {
	if c.hook == nil {
		return errors.New("refresh command requires hook")
	}
	if msg.Event.Entity == "" {
		return errors.New("refresh command requires entity")
	}
	if err := c.hook.EntityUpdated(ctx, msg.Event); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.entity.refresh", map[string]any{
		"entity": msg.Event.Entity,
		"reason": msg.Event.Reason,
	})
	return nil
}
