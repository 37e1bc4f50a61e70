package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ControllerOptions wires the shared collaborators used to build per-request views.
type ControllerOptions struct {
	Registry    *Registry
	Rows        RowSource
	Preferences *ColumnPreferences
	Validators  ValidatorSource
	Notifier    Notifier
	RefreshHook RefreshHook
	Telemetry   Telemetry
	Logger      *zerolog.Logger
	ChartCache  RenderCache
	Renderer    Renderer
	Now         func() time.Time
}

// Controller builds entity tables and summaries for a viewer and exposes the
// operations the HTTP and CLI transports call.
type Controller struct {
	opts ControllerOptions
}

// NewController wires collaborators into a controller with safe defaults.
func NewController(opts ControllerOptions) *Controller {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.RefreshHook == nil {
		opts.RefreshHook = noopRefreshHook{}
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Preferences == nil {
		opts.Preferences = NewColumnPreferences(nil, nil, *opts.Logger)
	}
	return &Controller{opts: opts}
}

// Registry exposes the entity registry.
func (c *Controller) Registry() *Registry { return c.opts.Registry }

// ListRequest narrows a table listing.
type ListRequest struct {
	Filter Filter `json:"filter"`
	Page   int    `json:"page"`
}

// TableSnapshot is the serializable state of one table page.
type TableSnapshot struct {
	Entity       string                   `json:"entity"`
	Name         string                   `json:"name"`
	Columns      ColumnSet                `json:"columns"`
	ColumnSource ColumnSource             `json:"column_source"`
	Filter       Filter                   `json:"filter"`
	Page         Page                     `json:"page"`
	Badges       map[string]BadgeCategory `json:"badges,omitempty"`
	CanExport    bool                     `json:"can_export"`
	CanMutate    bool                     `json:"can_mutate_columns"`
}

// NewTable builds an unloaded table for viewer.
func (c *Controller) NewTable(viewer ViewerContext, code string) (*EntityTable, error) {
	cfg, err := c.opts.Registry.MustEntity(code)
	if err != nil {
		return nil, err
	}
	var validator RowValidator
	if c.opts.Validators != nil {
		validator, _ = c.opts.Validators.RowValidator(code)
	}
	return NewEntityTable(TableOptions{
		Config:      cfg,
		Validator:   validator,
		Viewer:      viewer,
		Rows:        c.opts.Rows,
		Preferences: c.opts.Preferences,
		Notifier:    c.opts.Notifier,
		RefreshHook: c.opts.RefreshHook,
		Telemetry:   c.opts.Telemetry,
		Logger:      c.opts.Logger,
		Now:         c.opts.Now,
	}), nil
}

// Table builds and loads a table for viewer.
func (c *Controller) Table(ctx context.Context, viewer ViewerContext, code string) (*EntityTable, error) {
	table, err := c.NewTable(viewer, code)
	if err != nil {
		return nil, err
	}
	if err := table.Load(ctx); err != nil {
		return nil, err
	}
	return table, nil
}

// ListRows loads the table, applies req and returns the requested page.
func (c *Controller) ListRows(ctx context.Context, viewer ViewerContext, code string, req ListRequest) (TableSnapshot, error) {
	table, err := c.Table(ctx, viewer, code)
	if err != nil {
		return TableSnapshot{}, err
	}
	table.ApplyFilter(req.Filter)
	page := table.GoToPage(req.Page)
	return c.snapshot(table, page), nil
}

func (c *Controller) snapshot(table *EntityTable, page Page) TableSnapshot {
	cfg := table.Config()
	snap := TableSnapshot{
		Entity:       cfg.Code,
		Name:         cfg.DisplayName(),
		Columns:      table.Columns(),
		ColumnSource: table.ColumnSource(),
		Filter:       table.Filter(),
		Page:         page,
		CanExport:    table.CanExport(),
		CanMutate:    table.Viewer().IsAdmin(),
	}
	if cfg.StatusColumn != "" {
		snap.Badges = make(map[string]BadgeCategory, len(page.Rows))
		for _, row := range page.Rows {
			snap.Badges[row.ID] = table.Badge(row)
		}
	}
	return snap
}

// SubmitRow creates (empty draft id) or updates a row.
func (c *Controller) SubmitRow(ctx context.Context, viewer ViewerContext, code string, draft Draft) (Row, error) {
	table, err := c.NewTable(viewer, code)
	if err != nil {
		return Row{}, err
	}
	return table.Submit(ctx, draft)
}

// DeleteRow confirms deletion of id in one step.
func (c *Controller) DeleteRow(ctx context.Context, viewer ViewerContext, code, id string) error {
	table, err := c.Table(ctx, viewer, code)
	if err != nil {
		return err
	}
	if err := table.RequestDelete(id); err != nil {
		return err
	}
	return table.ConfirmDelete(ctx)
}

// Columns resolves the viewer's active column set.
func (c *Controller) Columns(ctx context.Context, viewer ViewerContext, code string) (ColumnSet, ColumnSource, error) {
	table, err := c.NewTable(viewer, code)
	if err != nil {
		return nil, "", err
	}
	source := table.LoadColumns(ctx)
	return table.Columns(), source, nil
}

// SaveColumns replaces the viewer's column set with columns.
func (c *Controller) SaveColumns(ctx context.Context, viewer ViewerContext, code string, columns ColumnSet) error {
	table, err := c.NewTable(viewer, code)
	if err != nil {
		return err
	}
	table.LoadColumns(ctx)
	editor := table.OpenColumnEditor()
	if err := editor.Apply(columns); err != nil {
		return err
	}
	return table.SaveColumns(ctx, editor)
}

// Export writes the filtered rows as CSV and returns the file name.
func (c *Controller) Export(ctx context.Context, viewer ViewerContext, code string, filter Filter, w io.Writer) (string, int, error) {
	table, err := c.Table(ctx, viewer, code)
	if err != nil {
		return "", 0, err
	}
	table.ApplyFilter(filter)
	n, err := table.ExportCSV(ctx, w)
	if err != nil {
		return "", n, err
	}
	return table.ExportFileName(), n, nil
}

// Summary loads the aggregated dashboard. A partially failed load still returns the summary.
func (c *Controller) Summary(ctx context.Context, viewer ViewerContext) (*Summary, error) {
	summary := NewSummary(SummaryOptions{
		Registry:   c.opts.Registry,
		Viewer:     viewer,
		Rows:       c.opts.Rows,
		Notifier:   c.opts.Notifier,
		Telemetry:  c.opts.Telemetry,
		Logger:     c.opts.Logger,
		ChartCache: c.opts.ChartCache,
		Now:        c.opts.Now,
	})
	err := summary.Load(ctx)
	return summary, err
}

// RenderTable renders one table page as HTML.
func (c *Controller) RenderTable(ctx context.Context, viewer ViewerContext, code string, req ListRequest) (string, error) {
	snap, err := c.ListRows(ctx, viewer, code, req)
	if err != nil {
		return "", err
	}
	data := map[string]any{
		"table":  snap,
		"viewer": viewer,
		"rows":   tableRowsView(snap),
	}
	if snap.Page.HasPrevious() {
		data["prevPage"] = snap.Page.Number - 1
	}
	if snap.Page.HasNext() {
		data["nextPage"] = snap.Page.Number + 1
	}
	return c.render("table", data)
}

// RenderSummary renders the landing page as HTML.
func (c *Controller) RenderSummary(ctx context.Context, viewer ViewerContext) (string, error) {
	summary, err := c.Summary(ctx, viewer)
	if summary == nil {
		return "", err
	}
	chart, chartErr := summary.SummaryChart()
	if chartErr != nil {
		c.opts.Logger.Warn().Err(chartErr).Msg("summary chart failed")
	}
	return c.render("summary", map[string]any{
		"viewer":    viewer,
		"cards":     summary.Cards(),
		"preview":   summary.PreviewEntity(),
		"rows":      rowsView(summary.Preview()),
		"day":       summary.Day().Format(time.DateOnly),
		"dailyWork": rowsView(summary.DailyWork()),
		"chart":     chart,
	})
}

func (c *Controller) render(name string, data map[string]any) (string, error) {
	if c.opts.Renderer == nil {
		return "", fmt.Errorf("dashboard: renderer not configured")
	}
	var buf bytes.Buffer
	if _, err := c.opts.Renderer.Render(name, data, &buf); err != nil {
		return "", fmt.Errorf("dashboard: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// tableRowsView flattens page rows into visible cell strings for templates.
func tableRowsView(snap TableSnapshot) []map[string]any {
	visible := snap.Columns.Visible()
	out := make([]map[string]any, 0, len(snap.Page.Rows))
	for _, row := range snap.Page.Rows {
		cells := make([]string, len(visible))
		for i, col := range visible {
			cells[i] = row.Fields.Resolve(col).String()
		}
		out = append(out, map[string]any{
			"id":    row.ID,
			"cells": cells,
			"badge": string(snap.Badges[row.ID]),
		})
	}
	return out
}

func rowsView(rows []Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{"id": row.ID, "fields": row.Fields.Map()})
	}
	return out
}
