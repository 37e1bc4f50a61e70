package commands

import (
	"context"
	"errors"
	"io"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// SubmitRowInput creates a row (empty ID) or updates the row with ID.
type SubmitRowInput struct {
	Viewer dashboard.ViewerContext `json:"-"`
	Entity string                  `json:"entity"`
	ID     string                  `json:"id,omitempty"`
	Fields dashboard.Record        `json:"fields"`
	// Result receives the merged row on success.
	Result *dashboard.Row `json:"-"`
}

type rowService interface {
	SubmitRow(ctx context.Context, viewer dashboard.ViewerContext, entity string, draft dashboard.Draft) (dashboard.Row, error)
	DeleteRow(ctx context.Context, viewer dashboard.ViewerContext, entity, id string) error
}

// SubmitRowCommand validates and sends an add/edit form.
type SubmitRowCommand struct {
	service   rowService
	telemetry Telemetry
}

// NewSubmitRowCommand creates the command.
func NewSubmitRowCommand(service rowService, telemetry Telemetry) *SubmitRowCommand {
	return &SubmitRowCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SubmitRowInput] = (*SubmitRowCommand)(nil)

// Execute delegates to the controller. Validation errors are returned untouched so
// transports can map them to 422.
func (c *SubmitRowCommand) Execute(ctx context.Context, msg SubmitRowInput) error {
	if c.service == nil {
		return errors.New("submit command requires service")
	}
	if msg.Entity == "" {
		return errors.New("submit command requires entity")
	}
	row, err := c.service.SubmitRow(ctx, msg.Viewer, msg.Entity, dashboard.Draft{ID: msg.ID, Fields: msg.Fields})
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = row
	}
	action := "create"
	if msg.ID != "" {
		action = "update"
	}
	c.telemetry.Record(ctx, "dashboard.row."+action, map[string]any{
		"entity": msg.Entity,
		"row_id": row.ID,
	})
	return nil
}

// DeleteRowInput identifies the row to delete.
type DeleteRowInput struct {
	Viewer dashboard.ViewerContext `json:"-"`
	Entity string                  `json:"entity"`
	RowID  string                  `json:"row_id"`
}

// DeleteRowCommand deletes a confirmed row.
type DeleteRowCommand struct {
	service   rowService
	telemetry Telemetry
}

// NewDeleteRowCommand creates the command.
func NewDeleteRowCommand(service rowService, telemetry Telemetry) *DeleteRowCommand {
	return &DeleteRowCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[DeleteRowInput] = (*DeleteRowCommand)(nil)

// Execute removes the row.
func (c *DeleteRowCommand) Execute(ctx context.Context, msg DeleteRowInput) error {
	if c.service == nil {
		return errors.New("delete command requires service")
	}
	if msg.RowID == "" {
		return errors.New("delete command requires row id")
	}
	if err := c.service.DeleteRow(ctx, msg.Viewer, msg.Entity, msg.RowID); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.row.delete", map[string]any{
		"entity": msg.Entity,
		"row_id": msg.RowID,
	})
	return nil
}

// ExportRowsInput streams the filtered rows of an entity as CSV into Writer.
type ExportRowsInput struct {
	Viewer dashboard.ViewerContext
	Entity string
	Filter dashboard.Filter
	Writer io.Writer
	// FileName receives the suggested download name.
	FileName *string
}

type exportService interface {
	Export(ctx context.Context, viewer dashboard.ViewerContext, entity string, filter dashboard.Filter, w io.Writer) (string, int, error)
}

// ExportRowsCommand writes a CSV export.
type ExportRowsCommand struct {
	service   exportService
	telemetry Telemetry
}

// NewExportRowsCommand creates the command.
func NewExportRowsCommand(service exportService, telemetry Telemetry) *ExportRowsCommand {
	return &ExportRowsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ExportRowsInput] = (*ExportRowsCommand)(nil)

// Execute writes the export.
func (c *ExportRowsCommand) Execute(ctx context.Context, msg ExportRowsInput) error {
	if c.service == nil {
		return errors.New("export command requires service")
	}
	if msg.Writer == nil {
		return errors.New("export command requires writer")
	}
	name, n, err := c.service.Export(ctx, msg.Viewer, msg.Entity, msg.Filter, msg.Writer)
	if err != nil {
		return err
	}
	if msg.FileName != nil {
		*msg.FileName = name
	}
	c.telemetry.Record(ctx, "dashboard.rows.export", map[string]any{"entity": msg.Entity, "rows": n})
	return nil
}
