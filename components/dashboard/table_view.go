package dashboard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TableOptions configures an EntityTable. Every collaborator is an interface so
// transports and tests can swap implementations.
type TableOptions struct {
	Config      EntityConfig
	Viewer      ViewerContext
	Rows        RowSource
	Preferences *ColumnPreferences
	Notifier    Notifier
	RefreshHook RefreshHook
	Telemetry   Telemetry
	Logger      *zerolog.Logger
	// Validator runs after the required-field check, before any network call.
	Validator RowValidator
	// RefetchAfterWrite reloads the list after a successful create/update.
	// A failed refetch keeps the local merge.
	RefetchAfterWrite bool
	Now               func() time.Time
}

// Draft is the add/edit form state. An empty ID means create.
type Draft struct {
	ID     string
	Fields Record
}

// Set stores a form value.
func (d *Draft) Set(key string, value any) {
	d.Fields.Set(key, ParseValue(value))
}

// EntityTable is the generic CRUD table view: rows, search, column management,
// pagination, export and add/edit/delete flows for one entity.
type EntityTable struct {
	opts   TableOptions
	cfg    EntityConfig
	logger zerolog.Logger

	mu            sync.RWMutex
	rows          []Row
	filtered      []Row
	filter        Filter
	columns       ColumnSet
	columnSource  ColumnSource
	page          int
	pendingDelete string
	editing       string
	loaded        bool
}

// NewEntityTable builds a table with safe defaults.
func NewEntityTable(opts TableOptions) *EntityTable {
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
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Preferences == nil {
		opts.Preferences = NewColumnPreferences(nil, nil, logger)
	}
	return &EntityTable{
		opts:    opts,
		cfg:     opts.Config,
		logger:  logger.With().Str("entity", opts.Config.Code).Logger(),
		columns: opts.Config.DefaultColumns.Clone(),
		page:    1,
	}
}

// Config returns the entity configuration.
func (t *EntityTable) Config() EntityConfig { return t.cfg }

// Viewer returns the injected identity.
func (t *EntityTable) Viewer() ViewerContext { return t.opts.Viewer }

// Load fetches rows scoped by the viewer and resolves the column set.
func (t *EntityTable) Load(ctx context.Context) error {
	if t.opts.Rows == nil {
		return errMissingRowSource
	}
	rows, err := t.opts.Rows.ListRows(ctx, t.cfg.Endpoints, t.opts.Viewer)
	res := t.opts.Preferences.Load(ctx, t.cfg, t.opts.Viewer)

	t.mu.Lock()
	t.columns = res.Columns
	t.columnSource = res.Source
	if err == nil {
		t.rows = rows
		t.loaded = true
	}
	t.refilterLocked()
	t.mu.Unlock()

	if err != nil {
		t.logger.Error().Err(err).Msg("row fetch failed")
		notifyError(ctx, t.opts.Notifier, "Failed to load "+t.cfg.DisplayName(), err)
		return fmt.Errorf("dashboard: load %s: %w", t.cfg.Code, err)
	}
	t.recordTelemetry(ctx, "dashboard.table.load", map[string]any{
		"rows":           len(rows),
		"columns_source": string(res.Source),
	})
	return nil
}

// LoadColumns resolves only the column set, for flows that never touch rows.
func (t *EntityTable) LoadColumns(ctx context.Context) ColumnSource {
	res := t.opts.Preferences.Load(ctx, t.cfg, t.opts.Viewer)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.columns = res.Columns
	t.columnSource = res.Source
	t.refilterLocked()
	return res.Source
}

// Loaded reports whether a row fetch has succeeded.
func (t *EntityTable) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// Rows returns every row.
func (t *EntityTable) Rows() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Row(nil), t.rows...)
}

// Filtered returns the rows passing the current filter.
func (t *EntityTable) Filtered() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Row(nil), t.filtered...)
}

// Row finds a row by backend id.
func (t *EntityTable) Row(id string) (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := indexRow(t.rows, id); i >= 0 {
		return t.rows[i].Clone(), true
	}
	return Row{}, false
}

// Columns returns the active column set.
func (t *EntityTable) Columns() ColumnSet {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.columns.Clone()
}

// ColumnSource reports where the active column set was loaded from.
func (t *EntityTable) ColumnSource() ColumnSource {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.columnSource
}

// Filter returns the current search state.
func (t *EntityTable) Filter() Filter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filter
}

// SetSearchTerm updates the term; live-search entities refilter immediately.
func (t *EntityTable) SetSearchTerm(term string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter.Term = term
	if t.cfg.LiveSearch {
		t.refilterLocked()
	}
}

// SetFilterColumn selects the column searched ("" or FilterAll for every visible column).
func (t *EntityTable) SetFilterColumn(column string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter.Column = column
	if t.cfg.LiveSearch {
		t.refilterLocked()
	}
}

// Search applies the current filter (the explicit Search button).
func (t *EntityTable) Search() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refilterLocked()
	return append([]Row(nil), t.filtered...)
}

// ApplyFilter sets term and column and refilters regardless of search mode.
func (t *EntityTable) ApplyFilter(f Filter) []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = f
	t.refilterLocked()
	return append([]Row(nil), t.filtered...)
}

// Clear resets term, column selector and filtered list.
func (t *EntityTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = Filter{}
	t.refilterLocked()
}

func (t *EntityTable) refilterLocked() {
	t.filtered = t.filter.Apply(t.rows, t.columns)
	t.page = clampPage(t.page, PageCount(len(t.filtered), t.cfg.pageSize()))
}

// Page returns the current page of filtered rows.
func (t *EntityTable) Page() Page {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Paginate(t.filtered, t.page, t.cfg.pageSize())
}

// GoToPage moves to page n (clamped).
func (t *EntityTable) GoToPage(n int) Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = clampPage(n, PageCount(len(t.filtered), t.cfg.pageSize()))
	return Paginate(t.filtered, t.page, t.cfg.pageSize())
}

// FirstPage moves to page 1.
func (t *EntityTable) FirstPage() Page { return t.GoToPage(1) }

// LastPage moves to the last page.
func (t *EntityTable) LastPage() Page {
	t.mu.RLock()
	last := PageCount(len(t.filtered), t.cfg.pageSize())
	t.mu.RUnlock()
	return t.GoToPage(last)
}

// NextPage advances one page.
func (t *EntityTable) NextPage() Page {
	t.mu.RLock()
	n := t.page + 1
	t.mu.RUnlock()
	return t.GoToPage(n)
}

// PreviousPage goes back one page.
func (t *EntityTable) PreviousPage() Page {
	t.mu.RLock()
	n := t.page - 1
	t.mu.RUnlock()
	return t.GoToPage(n)
}

// Badge resolves the status badge category for row.
func (t *EntityTable) Badge(row Row) BadgeCategory {
	if t.cfg.StatusColumn == "" {
		return BadgeNeutral
	}
	col, ok := t.cfg.DefaultColumns.Lookup(t.cfg.StatusColumn)
	if !ok {
		col = ColumnDescriptor{ID: t.cfg.StatusColumn}
	}
	return t.cfg.StatusRules.Resolve(row.Fields.Resolve(col).String())
}

// NewDraft opens the Add form pre-filled with entity defaults.
func (t *EntityTable) NewDraft() Draft {
	var d Draft
	for _, c := range t.cfg.DefaultColumns {
		if v, ok := t.cfg.Defaults[c.ID]; ok {
			d.Fields.Set(c.ID, Text(v))
		}
	}
	for k, v := range t.cfg.Defaults {
		if _, ok := d.Fields.Get(k); !ok {
			d.Fields.Set(k, Text(v))
		}
	}
	t.mu.Lock()
	t.editing = ""
	t.mu.Unlock()
	return d
}

// EditDraft opens the Edit form for id, mapping legacy alt keys onto canonical keys.
func (t *EntityTable) EditDraft(id string) (Draft, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := indexRow(t.rows, id)
	if i < 0 {
		return Draft{}, fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	row := t.rows[i]
	d := Draft{ID: row.ID, Fields: row.Fields.Clone()}
	for _, c := range mergeColumns(t.columns, t.cfg.DefaultColumns) {
		if c.AltKey == "" {
			continue
		}
		if v := row.Fields.Resolve(c); !v.IsNull() {
			d.Fields.Set(c.ID, v)
		}
		d.Fields.Delete(c.AltKey)
	}
	t.editing = row.ID
	return d, nil
}

// Editing returns the id of the row being edited.
func (t *EntityTable) Editing() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.editing
}

// Submit validates and sends the draft. Validation failures never reach the network.
func (t *EntityTable) Submit(ctx context.Context, d Draft) (Row, error) {
	if t.opts.Rows == nil {
		return Row{}, errMissingRowSource
	}
	if err := ValidateRequired(t.cfg, d.Fields); err != nil {
		t.opts.Notifier.Notify(ctx, Notification{
			Level:       LevelError,
			Title:       "Missing required fields",
			Description: "Please fill in: " + strings.Join(err.(*ValidationError).Missing, ", "),
		})
		return Row{}, err
	}
	if t.opts.Validator != nil {
		if err := t.opts.Validator.ValidateRow(d.Fields); err != nil {
			notifyError(ctx, t.opts.Notifier, "Invalid "+t.cfg.DisplayName(), err)
			return Row{}, err
		}
	}
	if d.ID == "" {
		return t.create(ctx, d)
	}
	return t.update(ctx, d)
}

func (t *EntityTable) create(ctx context.Context, d Draft) (Row, error) {
	created, err := t.opts.Rows.CreateRow(ctx, t.cfg.Endpoints, t.opts.Viewer, d.Fields.Clone())
	if err != nil {
		notifyError(ctx, t.opts.Notifier, "Failed to add "+t.cfg.DisplayName(), err)
		return Row{}, fmt.Errorf("dashboard: create %s: %w", t.cfg.Code, err)
	}
	row := overlay(created, d.Fields)
	if row.CreatedBy == "" {
		row.CreatedBy = t.opts.Viewer.Scope()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = t.opts.Now()
	}

	t.mu.Lock()
	t.rows = append(t.rows, row)
	t.refilterLocked()
	t.mu.Unlock()

	t.afterWrite(ctx, row.ID, ReasonRowCreated)
	notifySuccess(ctx, t.opts.Notifier, t.cfg.DisplayName()+" added", "The record was created successfully.")
	return row, nil
}

func (t *EntityTable) update(ctx context.Context, d Draft) (Row, error) {
	updated, err := t.opts.Rows.UpdateRow(ctx, t.cfg.Endpoints, t.opts.Viewer, d.ID, d.Fields.Clone())
	if err != nil {
		notifyError(ctx, t.opts.Notifier, "Failed to update "+t.cfg.DisplayName(), err)
		return Row{}, fmt.Errorf("dashboard: update %s %s: %w", t.cfg.Code, d.ID, err)
	}

	t.mu.Lock()
	base := updated
	if i := indexRow(t.rows, d.ID); i >= 0 && base.Fields.Len() == 0 {
		base = t.rows[i].Clone()
		base.UpdatedBy, base.UpdatedAt = updated.UpdatedBy, updated.UpdatedAt
	}
	base.ID = d.ID
	for _, c := range mergeColumns(t.columns, t.cfg.DefaultColumns) {
		if _, ok := d.Fields.Get(c.ID); ok && c.AltKey != "" {
			base.Fields.Delete(c.AltKey)
		}
	}
	row := overlay(base, d.Fields)
	if row.UpdatedBy == "" {
		row.UpdatedBy = t.opts.Viewer.Scope()
	}
	if row.UpdatedAt == nil {
		now := t.opts.Now()
		row.UpdatedAt = &now
	}
	if i := indexRow(t.rows, d.ID); i >= 0 {
		t.rows[i] = row
	} else {
		t.rows = append(t.rows, row)
	}
	if t.editing == d.ID {
		t.editing = ""
	}
	t.refilterLocked()
	t.mu.Unlock()

	t.afterWrite(ctx, row.ID, ReasonRowUpdated)
	notifySuccess(ctx, t.opts.Notifier, t.cfg.DisplayName()+" updated", "The record was updated successfully.")
	return row, nil
}

func (t *EntityTable) afterWrite(ctx context.Context, rowID, reason string) {
	t.publish(ctx, rowID, reason)
	t.recordTelemetry(ctx, "dashboard.table."+strings.TrimPrefix(reason, "row."), map[string]any{"row_id": rowID})
	if !t.opts.RefetchAfterWrite {
		return
	}
	rows, err := t.opts.Rows.ListRows(ctx, t.cfg.Endpoints, t.opts.Viewer)
	if err != nil {
		t.logger.Warn().Err(err).Msg("refetch after write failed, keeping local merge")
		return
	}
	t.mu.Lock()
	t.rows = rows
	t.refilterLocked()
	t.mu.Unlock()
}

// RequestDelete stores the target id and opens the confirmation step.
func (t *EntityTable) RequestDelete(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if indexRow(t.rows, id) < 0 {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	t.pendingDelete = id
	return nil
}

// PendingDelete returns the id awaiting confirmation.
func (t *EntityTable) PendingDelete() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pendingDelete
}

// CancelDelete clears the pending delete without any call.
func (t *EntityTable) CancelDelete() {
	t.mu.Lock()
	t.pendingDelete = ""
	t.mu.Unlock()
}

// ConfirmDelete deletes the pending row. The row leaves local state only on success.
func (t *EntityTable) ConfirmDelete(ctx context.Context) error {
	if t.opts.Rows == nil {
		return errMissingRowSource
	}
	t.mu.Lock()
	id := t.pendingDelete
	t.pendingDelete = ""
	t.mu.Unlock()
	if id == "" {
		return ErrNoPendingDelete
	}
	if err := t.opts.Rows.DeleteRow(ctx, t.cfg.Endpoints, t.opts.Viewer, id); err != nil {
		notifyError(ctx, t.opts.Notifier, "Failed to delete "+t.cfg.DisplayName(), err)
		return fmt.Errorf("dashboard: delete %s %s: %w", t.cfg.Code, id, err)
	}
	t.mu.Lock()
	t.rows = removeRow(t.rows, id)
	t.filtered = removeRow(t.filtered, id)
	t.page = clampPage(t.page, PageCount(len(t.filtered), t.cfg.pageSize()))
	if t.editing == id {
		t.editing = ""
	}
	t.mu.Unlock()

	t.publish(ctx, id, ReasonRowDeleted)
	t.recordTelemetry(ctx, "dashboard.table.deleted", map[string]any{"row_id": id})
	notifySuccess(ctx, t.opts.Notifier, t.cfg.DisplayName()+" deleted", "The record was deleted.")
	return nil
}

// OpenColumnEditor returns an editor over a temporary copy of the active columns.
func (t *EntityTable) OpenColumnEditor() *ColumnEditor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return NewColumnEditor(t.opts.Viewer, t.columns, t.cfg.DefaultColumns)
}

// SaveColumns persists the editor's copy, globally for admins and as a personal
// override otherwise, then makes it the active set. Invalid sets leave the active
// set and the cache untouched. A failed remote save keeps the previous active set
// while the cache still records the edit.
func (t *EntityTable) SaveColumns(ctx context.Context, editor *ColumnEditor) error {
	cols := editor.Columns()
	if err := cols.Validate(); err != nil {
		notifyError(ctx, t.opts.Notifier, "Invalid columns", err)
		return err
	}
	if err := t.opts.Preferences.Save(ctx, t.cfg, t.opts.Viewer, cols); err != nil {
		t.logger.Error().Err(err).Msg("column save failed")
		notifyError(ctx, t.opts.Notifier, "Failed to save columns", err)
		return err
	}

	t.mu.Lock()
	t.columns = cols
	t.refilterLocked()
	t.mu.Unlock()
	t.publish(ctx, "", ReasonColumnsSaved)
	t.recordTelemetry(ctx, "dashboard.columns.save", map[string]any{
		"columns": len(cols),
		"global":  t.opts.Viewer.IsAdmin(),
	})
	notifySuccess(ctx, t.opts.Notifier, "Columns saved", "Your column preferences were saved.")
	return nil
}

// CanExport reports whether there is anything to export.
func (t *EntityTable) CanExport() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.filtered) > 0
}

// ExportCSV writes the filtered rows using the visible columns.
func (t *EntityTable) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	t.mu.RLock()
	rows := append([]Row(nil), t.filtered...)
	cols := t.columns.Clone()
	t.mu.RUnlock()
	n, err := ExportCSV(w, rows, cols)
	if err != nil {
		return n, err
	}
	t.recordTelemetry(ctx, "dashboard.table.export", map[string]any{"rows": n})
	return n, nil
}

// ExportFileName returns the date-stamped file name for this entity.
func (t *EntityTable) ExportFileName() string {
	return ExportFileName(t.cfg.DisplayName(), t.opts.Now())
}

func (t *EntityTable) publish(ctx context.Context, rowID, reason string) {
	event := EntityEvent{
		Entity: t.cfg.Code,
		RowID:  rowID,
		Reason: reason,
		Actor:  t.opts.Viewer.Scope(),
		At:     t.opts.Now(),
	}
	if err := t.opts.RefreshHook.EntityUpdated(ctx, event); err != nil {
		t.logger.Warn().Err(err).Str("reason", reason).Msg("refresh hook failed")
	}
}

func (t *EntityTable) recordTelemetry(ctx context.Context, event string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["entity"] = t.cfg.Code
	t.opts.Telemetry.Record(ctx, event, payload)
}

func overlay(base Row, fields Record) Row {
	row := base.Clone()
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		row.Fields.Set(k, v)
	}
	return row
}

func indexRow(rows []Row, id string) int {
	if id == "" {
		return -1
	}
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func removeRow(rows []Row, id string) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func mergeColumns(primary, secondary ColumnSet) ColumnSet {
	out := primary.Clone()
	for _, c := range secondary {
		if out.Index(c.ID) < 0 {
			out = append(out, c)
		}
	}
	return out
}
