package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// PreviewLimit caps the rows shown in the summary preview panel.
	PreviewLimit = 5
	// DailyWorkLimit caps the daily-work rows shown for the selected day.
	DailyWorkLimit = 5

	defaultChartHeight = "360px"
)

// SummaryEntities are fetched by the summary, in card order.
var SummaryEntities = []string{
	EntityDailyWork,
	EntitySuppliers,
	EntityMaterialInquiries,
	EntityCustomerDeliveries,
	EntityCustomerOrders,
	EntityMaterialReplenishments,
}

// PreviewEntities are cycled by the preview panel. Daily work has its own date stepper.
var PreviewEntities = []string{
	EntitySuppliers,
	EntityMaterialInquiries,
	EntityCustomerDeliveries,
	EntityCustomerOrders,
	EntityMaterialReplenishments,
}

// SummaryOptions configures the aggregator.
type SummaryOptions struct {
	Registry   *Registry
	Viewer     ViewerContext
	Rows       RowSource
	Notifier   Notifier
	Telemetry  Telemetry
	Logger     *zerolog.Logger
	ChartCache RenderCache
	ChartTheme string
	Now        func() time.Time
}

// SummaryCard is one count card on the landing page.
type SummaryCard struct {
	Entity string `json:"entity"`
	Title  string `json:"title"`
	Count  int    `json:"count"`
	Route  string `json:"route"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates counts and previews across every entity.
type Summary struct {
	opts   SummaryOptions
	logger zerolog.Logger

	mu      sync.RWMutex
	rows    map[string][]Row
	errs    map[string]error
	preview int
	day     time.Time
}

// NewSummary builds a summary aggregator.
func NewSummary(opts SummaryOptions) *Summary {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ChartTheme == "" {
		opts.ChartTheme = types.ThemeWesteros
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Summary{
		opts:   opts,
		logger: logger,
		rows:   map[string][]Row{},
		errs:   map[string]error{},
		day:    truncateDay(opts.Now()),
	}
}

// Load fetches every entity in parallel. A failed slice is reported and the others stay intact.
func (s *Summary) Load(ctx context.Context) error {
	if s.opts.Rows == nil {
		return errMissingRowSource
	}
	type result struct {
		rows []Row
		err  error
	}
	results := make([]result, len(SummaryEntities))

	var g errgroup.Group
	for i, code := range SummaryEntities {
		cfg, ok := s.opts.Registry.Entity(code)
		if !ok {
			results[i].err = fmt.Errorf("%w: %s", ErrUnknownEntity, code)
			continue
		}
		g.Go(func() error {
			rows, err := s.opts.Rows.ListRows(ctx, cfg.Endpoints, s.opts.Viewer)
			results[i] = result{rows: rows, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	s.mu.Lock()
	for i, code := range SummaryEntities {
		if err := results[i].err; err != nil {
			s.errs[code] = err
			errs = append(errs, fmt.Errorf("dashboard: summary %s: %w", code, err))
			continue
		}
		delete(s.errs, code)
		s.rows[code] = results[i].rows
	}
	s.mu.Unlock()

	for _, err := range errs {
		s.logger.Warn().Err(err).Msg("summary slice failed")
		notifyError(ctx, s.opts.Notifier, "Failed to load dashboard data", err)
	}
	s.opts.Telemetry.Record(ctx, "dashboard.summary.load", map[string]any{
		"entities": len(SummaryEntities),
		"failed":   len(errs),
	})
	return errors.Join(errs...)
}

// Rows returns the loaded rows for one entity.
func (s *Summary) Rows(code string) []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Row(nil), s.rows[code]...)
}

// Cards returns one card per summary entity with its count and role-scoped route.
func (s *Summary) Cards() []SummaryCard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segment := s.opts.Viewer.RoleSegment()
	cards := make([]SummaryCard, 0, len(SummaryEntities))
	for _, code := range SummaryEntities {
		title := code
		if cfg, ok := s.opts.Registry.Entity(code); ok {
			title = cfg.DisplayName()
		}
		card := SummaryCard{
			Entity: code,
			Title:  title,
			Count:  len(s.rows[code]),
			Route:  "/" + segment + "/" + code,
		}
		if err := s.errs[code]; err != nil {
			card.Error = err.Error()
		}
		cards = append(cards, card)
	}
	return cards
}

// PreviewEntity returns the entity currently shown in the preview panel.
func (s *Summary) PreviewEntity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PreviewEntities[s.preview]
}

// NextPreview cycles forward, wrapping after the last entity.
func (s *Summary) NextPreview() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = (s.preview + 1) % len(PreviewEntities)
	return PreviewEntities[s.preview]
}

// PreviousPreview cycles backward, wrapping before the first entity.
func (s *Summary) PreviousPreview() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = (s.preview - 1 + len(PreviewEntities)) % len(PreviewEntities)
	return PreviewEntities[s.preview]
}

// Preview returns the first rows of the current preview entity from loaded data.
func (s *Summary) Preview() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.rows[PreviewEntities[s.preview]]
	if len(rows) > PreviewLimit {
		rows = rows[:PreviewLimit]
	}
	return append([]Row(nil), rows...)
}

// Day returns the selected daily-work day.
func (s *Summary) Day() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// CanAdvanceDay reports whether the next day is not in the future.
func (s *Summary) CanAdvanceDay() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.day.AddDate(0, 0, 1).After(truncateDay(s.opts.Now()))
}

// NextDay moves forward one day unless that would pass today.
func (s *Summary) NextDay() bool {
	if !s.CanAdvanceDay() {
		return false
	}
	s.mu.Lock()
	s.day = s.day.AddDate(0, 0, 1)
	s.mu.Unlock()
	return true
}

// PreviousDay moves back one day.
func (s *Summary) PreviousDay() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.day = s.day.AddDate(0, 0, -1)
	return s.day
}

// SetDay selects a specific day; future days clamp to today.
func (s *Summary) SetDay(day time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := truncateDay(s.opts.Now())
	day = truncateDay(day.In(today.Location()))
	if day.After(today) {
		day = today
	}
	s.day = day
	return s.day
}

// DailyWork returns daily-work rows on the selected calendar day, capped at DailyWorkLimit.
func (s *Summary) DailyWork() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, _ := s.opts.Registry.Entity(EntityDailyWork)
	out := make([]Row, 0, DailyWorkLimit)
	for _, row := range s.rows[EntityDailyWork] {
		at, ok := rowDate(row, cfg, s.day.Location())
		if !ok || !sameDay(at, s.day) {
			continue
		}
		out = append(out, row)
		if len(out) == DailyWorkLimit {
			break
		}
	}
	return out
}

// SummaryChart renders a bar chart of per-entity counts.
func (s *Summary) SummaryChart() (string, error) {
	cards := s.Cards()
	labels := make([]string, len(cards))
	data := make([]opts.BarData, len(cards))
	for i, card := range cards {
		labels[i] = card.Title
		data[i] = opts.BarData{Name: card.Title, Value: card.Count}
	}
	render := func() (string, error) {
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: "Records by table"}),
			charts.WithInitializationOpts(opts.Initialization{
				Theme:  s.opts.ChartTheme,
				Width:  "100%",
				Height: defaultChartHeight,
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(labels)
		bar.AddSeries("Records", data)
		return renderChart(bar)
	}
	if s.opts.ChartCache == nil {
		return render()
	}
	return s.opts.ChartCache.GetOrRender("summary:"+s.opts.ChartTheme+":"+contentHash(cards), render)
}

// rowDate returns the row's date in loc. Bare calendar dates keep their day;
// timestamps are converted.
func rowDate(row Row, cfg EntityConfig, loc *time.Location) (time.Time, bool) {
	if cfg.DateColumn != "" {
		col, ok := cfg.DefaultColumns.Lookup(cfg.DateColumn)
		if !ok {
			col = ColumnDescriptor{ID: cfg.DateColumn}
		}
		v := row.Fields.Resolve(col)
		if at, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(v.String()), loc); err == nil {
			return at, true
		}
		if at, ok := v.Time(); ok {
			return at.In(loc), true
		}
	}
	if !row.CreatedAt.IsZero() {
		return row.CreatedAt.In(loc), true
	}
	return time.Time{}, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
