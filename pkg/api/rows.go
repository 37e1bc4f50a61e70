package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

var (
	_ dashboard.RowSource   = (*Client)(nil)
	_ dashboard.HeaderStore = (*Client)(nil)
)

type scopedRequest struct {
	Email string `json:"email"`
}

// ListRows posts the viewer's email to the entity's list endpoint.
func (c *Client) ListRows(ctx context.Context, endpoints dashboard.EntityEndpoints, viewer dashboard.ViewerContext) ([]dashboard.Row, error) {
	var raw json.RawMessage
	if err := c.do(ctx, viewer, http.MethodPost, endpoints.List, scopedRequest{Email: viewer.Email}, &raw); err != nil {
		return nil, err
	}
	var rows []dashboard.Row
	if len(raw) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(unwrap(raw, "data", "rows", "items"), &rows); err != nil {
		return nil, fmt.Errorf("api: decode rows: %w", err)
	}
	return rows, nil
}

// CreateRow posts fields stamped with the creator.
func (c *Client) CreateRow(ctx context.Context, endpoints dashboard.EntityEndpoints, viewer dashboard.ViewerContext, fields dashboard.Record) (dashboard.Row, error) {
	payload := fields.Clone()
	if _, ok := payload.Get(dashboard.FieldCreatedBy); !ok && viewer.Email != "" {
		payload.Set(dashboard.FieldCreatedBy, dashboard.Text(viewer.Email))
	}
	return c.writeRow(ctx, viewer, http.MethodPost, endpoints.Create, payload)
}

// UpdateRow sends fields to the update endpoint. Paths without ":id" get the id in the body.
func (c *Client) UpdateRow(ctx context.Context, endpoints dashboard.EntityEndpoints, viewer dashboard.ViewerContext, id string, fields dashboard.Record) (dashboard.Row, error) {
	payload := fields.Clone()
	if !strings.Contains(endpoints.Update, ":id") {
		payload.Set(dashboard.FieldID, dashboard.Text(id))
	}
	if viewer.Email != "" {
		payload.Set(dashboard.FieldUpdatedBy, dashboard.Text(viewer.Email))
	}
	return c.writeRow(ctx, viewer, endpoints.UpdateVerb(), dashboard.WithID(endpoints.Update, id), payload)
}

// DeleteRow calls the delete endpoint with the row id.
func (c *Client) DeleteRow(ctx context.Context, endpoints dashboard.EntityEndpoints, viewer dashboard.ViewerContext, id string) error {
	var payload any
	if !strings.Contains(endpoints.Delete, ":id") {
		payload = map[string]string{dashboard.FieldID: id}
	}
	return c.do(ctx, viewer, endpoints.DeleteVerb(), dashboard.WithID(endpoints.Delete, id), payload, nil)
}

func (c *Client) writeRow(ctx context.Context, viewer dashboard.ViewerContext, method, path string, payload dashboard.Record) (dashboard.Row, error) {
	var raw json.RawMessage
	if err := c.do(ctx, viewer, method, path, payload, &raw); err != nil {
		return dashboard.Row{}, err
	}
	var row dashboard.Row
	if len(raw) == 0 {
		return row, nil
	}
	inner := unwrap(raw, "data", "row", "item")
	if len(inner) == 0 || inner[0] != '{' {
		return row, nil
	}
	if err := json.Unmarshal(inner, &row); err != nil {
		return dashboard.Row{}, fmt.Errorf("api: decode row: %w", err)
	}
	return row, nil
}

// FetchColumns reads the column set for the viewer.
func (c *Client) FetchColumns(ctx context.Context, endpoints dashboard.EntityEndpoints, viewer dashboard.ViewerContext) (dashboard.ColumnSet, error) {
	path := endpoints.Columns
	if viewer.Email != "" {
		path += "?email=" + url.QueryEscape(viewer.Email)
	}
	var raw json.RawMessage
	if err := c.do(ctx, viewer, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	var cols dashboard.ColumnSet
	if len(raw) == 0 {
		return cols, nil
	}
	if err := json.Unmarshal(unwrap(raw, "headers", "columns", "data"), &cols); err != nil {
		return nil, fmt.Errorf("api: decode columns: %w", err)
	}
	return cols, nil
}

type saveColumnsRequest struct {
	Email    string              `json:"email"`
	Headers  dashboard.ColumnSet `json:"headers"`
	Scope    string              `json:"scope"`
	IsGlobal bool                `json:"isGlobal"`
}

// SaveColumns persists columns globally or as a personal override.
func (c *Client) SaveColumns(ctx context.Context, endpoints dashboard.EntityEndpoints, viewer dashboard.ViewerContext, columns dashboard.ColumnSet, scope dashboard.ColumnScope) error {
	payload := saveColumnsRequest{
		Email:    viewer.Email,
		Headers:  columns,
		Scope:    string(scope),
		IsGlobal: scope == dashboard.ScopeGlobal,
	}
	return c.do(ctx, viewer, http.MethodPost, endpoints.SaveColumns, payload, nil)
}
