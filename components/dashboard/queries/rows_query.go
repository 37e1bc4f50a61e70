package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// ListRowsInput identifies a table page request for a viewer.
type ListRowsInput struct {
	Viewer  dashboard.ViewerContext
	Entity  string
	Request dashboard.ListRequest
}

type rowsService interface {
	ListRows(ctx context.Context, viewer dashboard.ViewerContext, entity string, req dashboard.ListRequest) (dashboard.TableSnapshot, error)
}

// ListRowsQuery loads, filters and paginates one entity table.
type ListRowsQuery struct {
	service rowsService
}

// NewListRowsQuery builds the query.
func NewListRowsQuery(service rowsService) *ListRowsQuery {
	return &ListRowsQuery{service: service}
}

var _ gocommand.Querier[ListRowsInput, dashboard.TableSnapshot] = (*ListRowsQuery)(nil)

// Query returns the requested page.
func (q *ListRowsQuery) Query(ctx context.Context, input ListRowsInput) (dashboard.TableSnapshot, error) {
	return q.service.ListRows(ctx, input.Viewer, input.Entity, input.Request)
}

// ColumnsInput identifies the column set to resolve.
type ColumnsInput struct {
	Viewer dashboard.ViewerContext
	Entity string
}

// ColumnsResult is the active column set and where it came from.
type ColumnsResult struct {
	Columns dashboard.ColumnSet    `json:"columns"`
	Source  dashboard.ColumnSource `json:"source"`
}

type columnsService interface {
	Columns(ctx context.Context, viewer dashboard.ViewerContext, entity string) (dashboard.ColumnSet, dashboard.ColumnSource, error)
}

// ColumnsQuery resolves the viewer's column set.
type ColumnsQuery struct {
	service columnsService
}

// NewColumnsQuery builds the query.
func NewColumnsQuery(service columnsService) *ColumnsQuery {
	return &ColumnsQuery{service: service}
}

var _ gocommand.Querier[ColumnsInput, ColumnsResult] = (*ColumnsQuery)(nil)

// Query resolves columns for the viewer.
func (q *ColumnsQuery) Query(ctx context.Context, input ColumnsInput) (ColumnsResult, error) {
	cols, source, err := q.service.Columns(ctx, input.Viewer, input.Entity)
	if err != nil {
		return ColumnsResult{}, err
	}
	return ColumnsResult{Columns: cols, Source: source}, nil
}
