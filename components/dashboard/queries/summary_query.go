package queries

import (
	"context"
	"time"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// SummaryInput selects the viewer and optional preview/date state.
type SummaryInput struct {
	Viewer dashboard.ViewerContext
	// PreviewEntity picks the preview panel entity; empty keeps the first.
	PreviewEntity string
	// Day selects the daily-work day; zero means today.
	Day time.Time
}

// SummaryView is the serializable landing page.
type SummaryView struct {
	Cards         []dashboard.SummaryCard `json:"cards"`
	PreviewEntity string                  `json:"preview_entity"`
	Preview       []dashboard.Row         `json:"preview"`
	Day           string                  `json:"day"`
	CanAdvanceDay bool                    `json:"can_advance_day"`
	DailyWork     []dashboard.Row         `json:"daily_work"`
	Partial       bool                    `json:"partial"`
}

type summaryService interface {
	Summary(ctx context.Context, viewer dashboard.ViewerContext) (*dashboard.Summary, error)
}

// SummaryQuery aggregates every entity for the landing page.
type SummaryQuery struct {
	service summaryService
}

// NewSummaryQuery builds the query.
func NewSummaryQuery(service summaryService) *SummaryQuery {
	return &SummaryQuery{service: service}
}

var _ gocommand.Querier[SummaryInput, SummaryView] = (*SummaryQuery)(nil)

// Query loads the summary. Failed slices mark the view partial rather than failing it.
func (q *SummaryQuery) Query(ctx context.Context, input SummaryInput) (SummaryView, error) {
	summary, err := q.service.Summary(ctx, input.Viewer)
	if summary == nil {
		return SummaryView{}, err
	}
	if input.PreviewEntity != "" {
		for i := 0; i < len(dashboard.PreviewEntities) && summary.PreviewEntity() != input.PreviewEntity; i++ {
			summary.NextPreview()
		}
	}
	if !input.Day.IsZero() {
		summary.SetDay(input.Day)
	}
	return SummaryView{
		Cards:         summary.Cards(),
		PreviewEntity: summary.PreviewEntity(),
		Preview:       summary.Preview(),
		Day:           summary.Day().Format(time.DateOnly),
		CanAdvanceDay: summary.CanAdvanceDay(),
		DailyWork:     summary.DailyWork(),
		Partial:       err != nil,
	}, nil
}
