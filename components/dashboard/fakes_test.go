package dashboard

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

var errBackend = errors.New("backend unavailable")

type fakeRowSource struct {
	mu        sync.Mutex
	rows      map[string][]Row
	listErr   map[string]error
	createErr error
	updateErr error
	deleteErr error
	echoEmpty bool

	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int
	lastFields  Record
	lastViewer  ViewerContext
	nextID      int
}

func newFakeRowSource() *fakeRowSource {
	return &fakeRowSource{rows: map[string][]Row{}, listErr: map[string]error{}}
}

func (f *fakeRowSource) seed(cfg EntityConfig, rows ...Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[cfg.Endpoints.List] = append(f.rows[cfg.Endpoints.List], rows...)
}

func (f *fakeRowSource) ListRows(_ context.Context, endpoints EntityEndpoints, viewer ViewerContext) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastViewer = viewer
	if err := f.listErr[endpoints.List]; err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(f.rows[endpoints.List]))
	for _, r := range f.rows[endpoints.List] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeRowSource) CreateRow(_ context.Context, endpoints EntityEndpoints, viewer ViewerContext, fields Record) (Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastFields = fields.Clone()
	if f.createErr != nil {
		return Row{}, f.createErr
	}
	f.nextID++
	row := Row{ID: "new-" + strconv.Itoa(f.nextID), CreatedBy: viewer.Scope()}
	if !f.echoEmpty {
		row.Fields = fields.Clone()
	}
	f.rows[endpoints.List] = append(f.rows[endpoints.List], Row{ID: row.ID, CreatedBy: row.CreatedBy, Fields: fields.Clone()})
	return row, nil
}

func (f *fakeRowSource) UpdateRow(_ context.Context, endpoints EntityEndpoints, _ ViewerContext, id string, fields Record) (Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastFields = fields.Clone()
	if f.updateErr != nil {
		return Row{}, f.updateErr
	}
	if f.echoEmpty {
		return Row{}, nil
	}
	return Row{ID: id, Fields: fields.Clone()}, nil
}

func (f *fakeRowSource) DeleteRow(_ context.Context, endpoints EntityEndpoints, _ ViewerContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	rows := f.rows[endpoints.List]
	f.rows[endpoints.List] = removeRow(rows, id)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}
	}
	return r.items[len(r.items)-1]
}

func (r *recordingNotifier) count(level NotificationLevel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

type recordingHook struct {
	mu     sync.Mutex
	events []EntityEvent
}

func (h *recordingHook) EntityUpdated(_ context.Context, event EntityEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

type failingHeaderStore struct {
	fetchErr error
	saveErr  error
	saved    []ColumnScope
}

func (f *failingHeaderStore) FetchColumns(context.Context, EntityEndpoints, ViewerContext) (ColumnSet, error) {
	return nil, f.fetchErr
}

func (f *failingHeaderStore) SaveColumns(_ context.Context, _ EntityEndpoints, _ ViewerContext, _ ColumnSet, scope ColumnScope) error {
	f.saved = append(f.saved, scope)
	return f.saveErr
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func mustEntity(t interface{ Fatalf(string, ...any) }, code string) EntityConfig {
	for _, cfg := range DefaultEntityConfigs() {
		if cfg.Code == code {
			return cfg
		}
	}
	t.Fatalf("unknown entity %s", code)
	return EntityConfig{}
}

func supplierRow(id, name, category, email string) Row {
	return Row{ID: id, Fields: NewRecord(
		"supplierName", name,
		"materialCategory", category,
		"email", email,
	)}
}

var (
	adminViewer  = ViewerContext{UserID: "u-admin", Email: "admin@example.com", Roles: []string{RoleAdmin}}
	clientViewer = ViewerContext{UserID: "u-client", Email: "client@example.com", Roles: []string{RoleClient}}
)

func zerologNop() zerolog.Logger { return zerolog.Nop() }
