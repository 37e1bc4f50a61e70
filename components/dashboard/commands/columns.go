package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// SaveColumnsInput replaces the viewer's column set for an entity.
type SaveColumnsInput struct {
	Viewer  dashboard.ViewerContext `json:"-"`
	Entity  string                  `json:"entity"`
	Columns dashboard.ColumnSet     `json:"columns"`
}

type columnService interface {
	Columns(ctx context.Context, viewer dashboard.ViewerContext, entity string) (dashboard.ColumnSet, dashboard.ColumnSource, error)
	SaveColumns(ctx context.Context, viewer dashboard.ViewerContext, entity string, columns dashboard.ColumnSet) error
}

// SaveColumnsCommand persists a column set (global for admins, personal otherwise).
type SaveColumnsCommand struct {
	service   columnService
	telemetry Telemetry
}

// NewSaveColumnsCommand creates the command.
func NewSaveColumnsCommand(service columnService, telemetry Telemetry) *SaveColumnsCommand {
	return &SaveColumnsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SaveColumnsInput] = (*SaveColumnsCommand)(nil)

// Execute stores the provided columns.
func (c *SaveColumnsCommand) Execute(ctx context.Context, msg SaveColumnsInput) error {
	if c.service == nil {
		return errors.New("columns command requires service")
	}
	if msg.Viewer.Scope() == "" {
		return errors.New("columns command requires viewer identity")
	}
	if err := c.service.SaveColumns(ctx, msg.Viewer, msg.Entity, msg.Columns); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.columns.save", map[string]any{
		"entity":  msg.Entity,
		"columns": len(msg.Columns),
		"admin":   msg.Viewer.IsAdmin(),
	})
	return nil
}

// MoveColumnInput shifts one column left (-1) or right (+1).
type MoveColumnInput struct {
	Viewer    dashboard.ViewerContext `json:"-"`
	Entity    string                  `json:"entity"`
	ColumnID  string                  `json:"column_id"`
	Direction int                     `json:"direction"`
}

// MoveColumnCommand reorders a single column and saves the result.
// Moves past either end are accepted and change nothing.
type MoveColumnCommand struct {
	service   columnService
	telemetry Telemetry
}

// NewMoveColumnCommand creates the command.
func NewMoveColumnCommand(service columnService, telemetry Telemetry) *MoveColumnCommand {
	return &MoveColumnCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[MoveColumnInput] = (*MoveColumnCommand)(nil)

// Execute moves the column.
func (c *MoveColumnCommand) Execute(ctx context.Context, msg MoveColumnInput) error {
	if c.service == nil {
		return errors.New("move command requires service")
	}
	current, _, err := c.service.Columns(ctx, msg.Viewer, msg.Entity)
	if err != nil {
		return err
	}
	if current.Index(msg.ColumnID) < 0 {
		return dashboard.ErrColumnNotFound
	}
	editor := dashboard.NewColumnEditor(msg.Viewer, current, nil)
	if !editor.MoveID(msg.ColumnID, msg.Direction) {
		return nil
	}
	if err := c.service.SaveColumns(ctx, msg.Viewer, msg.Entity, editor.Columns()); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.columns.move", map[string]any{
		"entity":    msg.Entity,
		"column_id": msg.ColumnID,
		"direction": msg.Direction,
	})
	return nil
}
