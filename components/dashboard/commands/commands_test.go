package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

var viewer = dashboard.ViewerContext{UserID: "u1", Email: "u1@example.com"}

func TestSubmitRowCommand(t *testing.T) {
	service := &stubService{}
	telemetry := &stubTelemetry{}
	cmd := NewSubmitRowCommand(service, telemetry)
	var result dashboard.Row
	input := SubmitRowInput{
		Viewer: viewer,
		Entity: dashboard.EntitySuppliers,
		Fields: dashboard.NewRecord("supplierName", "Acme"),
		Result: &result,
	}
	if err := cmd.Execute(context.Background(), input); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if service.submitCalls != 1 {
		t.Fatalf("expected submit call")
	}
	if result.ID != "row-1" {
		t.Fatalf("expected result row id, got %q", result.ID)
	}
	if telemetry.last != "dashboard.row.create" {
		t.Fatalf("unexpected telemetry event %q", telemetry.last)
	}

	input.ID = "row-1"
	if err := cmd.Execute(context.Background(), input); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if telemetry.last != "dashboard.row.update" {
		t.Fatalf("unexpected telemetry event %q", telemetry.last)
	}
}

func TestSubmitRowCommandPassesValidationErrors(t *testing.T) {
	service := &stubService{err: &dashboard.ValidationError{Missing: []string{"Name"}}}
	cmd := NewSubmitRowCommand(service, nil)
	err := cmd.Execute(context.Background(), SubmitRowInput{Entity: dashboard.EntitySuppliers})
	if !dashboard.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := cmd.Execute(context.Background(), SubmitRowInput{}); err == nil {
		t.Fatalf("expected error for missing entity")
	}
}

func TestDeleteRowCommand(t *testing.T) {
	service := &stubService{}
	cmd := NewDeleteRowCommand(service, nil)
	if err := cmd.Execute(context.Background(), DeleteRowInput{Entity: dashboard.EntitySuppliers, RowID: "row-1"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if service.deleteCalls != 1 {
		t.Fatalf("expected delete call")
	}
	if err := cmd.Execute(context.Background(), DeleteRowInput{Entity: dashboard.EntitySuppliers}); err == nil {
		t.Fatalf("expected error for missing row id")
	}
}

func TestExportRowsCommand(t *testing.T) {
	service := &stubService{}
	cmd := NewExportRowsCommand(service, nil)
	var buf bytes.Buffer
	var name string
	err := cmd.Execute(context.Background(), ExportRowsInput{
		Viewer: viewer, Entity: dashboard.EntitySuppliers, Writer: &buf, FileName: &name,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if name != "supplier-list-2024-05-01.csv" || buf.String() != "a,b\n" {
		t.Fatalf("unexpected export %q %q", name, buf.String())
	}
	if err := cmd.Execute(context.Background(), ExportRowsInput{}); err == nil {
		t.Fatalf("expected error for missing writer")
	}
}

func TestSaveColumnsCommand(t *testing.T) {
	service := &stubService{}
	cmd := NewSaveColumnsCommand(service, nil)
	cols := dashboard.ColumnSet{{ID: "a", Label: "A", Visible: true}}
	if err := cmd.Execute(context.Background(), SaveColumnsInput{Viewer: viewer, Entity: "suppliers", Columns: cols}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(service.saved) != 1 {
		t.Fatalf("expected save call")
	}
	if err := cmd.Execute(context.Background(), SaveColumnsInput{Entity: "suppliers"}); err == nil {
		t.Fatalf("expected error for anonymous viewer")
	}
}

func TestMoveColumnCommand(t *testing.T) {
	service := &stubService{columns: dashboard.ColumnSet{
		{ID: "a", Label: "A", Visible: true},
		{ID: "b", Label: "B", Visible: true},
	}}
	cmd := NewMoveColumnCommand(service, nil)

	if err := cmd.Execute(context.Background(), MoveColumnInput{Viewer: viewer, Entity: "suppliers", ColumnID: "a", Direction: -1}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(service.saved) != 0 {
		t.Fatalf("out of bounds move must not save")
	}

	if err := cmd.Execute(context.Background(), MoveColumnInput{Viewer: viewer, Entity: "suppliers", ColumnID: "a", Direction: 1}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := service.saved[0].IDs(); got[0] != "b" || got[1] != "a" {
		t.Fatalf("unexpected order %v", got)
	}

	err := cmd.Execute(context.Background(), MoveColumnInput{Viewer: viewer, Entity: "suppliers", ColumnID: "zzz", Direction: 1})
	if !errors.Is(err, dashboard.ErrColumnNotFound) {
		t.Fatalf("expected column not found, got %v", err)
	}
}

func TestRefreshEntityCommand(t *testing.T) {
	hook := dashboard.NewBroadcastHook()
	events, cancel := hook.Subscribe()
	defer cancel()
	cmd := NewRefreshEntityCommand(hook, nil)
	event := dashboard.EntityEvent{Entity: dashboard.EntityCustomerOrders, Reason: dashboard.ReasonRowUpdated}
	if err := cmd.Execute(context.Background(), RefreshEntityInput{Event: event}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	select {
	case got := <-events:
		if got.Entity != event.Entity {
			t.Fatalf("unexpected event %+v", got)
		}
	default:
		t.Fatalf("expected event")
	}
	if err := cmd.Execute(context.Background(), RefreshEntityInput{}); err == nil {
		t.Fatalf("expected error for missing entity")
	}
}

func TestLoadManifestsCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	manifest := "version: 1\nentities:\n  - entity:\n      code: returns\n      name: Returns\n      columns:\n        - {id: ref, label: Reference, visible: true}\n"
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	reg := dashboard.NewRegistry()
	telemetry := &stubTelemetry{}
	cmd := NewLoadManifestsCommand(reg, telemetry)
	if err := cmd.Execute(context.Background(), LoadManifestsInput{Paths: []string{path}}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if _, ok := reg.Entity("returns"); !ok {
		t.Fatalf("expected returns entity to be registered")
	}
	if telemetry.calls != 1 {
		t.Fatalf("expected telemetry")
	}
	if err := cmd.Execute(context.Background(), LoadManifestsInput{Paths: []string{filepath.Join(dir, "missing.yaml")}}); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

type stubService struct {
	submitCalls int
	deleteCalls int
	err         error
	columns     dashboard.ColumnSet
	saved       []dashboard.ColumnSet
}

func (s *stubService) SubmitRow(_ context.Context, _ dashboard.ViewerContext, _ string, draft dashboard.Draft) (dashboard.Row, error) {
	s.submitCalls++
	if s.err != nil {
		return dashboard.Row{}, s.err
	}
	id := draft.ID
	if id == "" {
		id = "row-1"
	}
	return dashboard.Row{ID: id, Fields: draft.Fields}, nil
}

func (s *stubService) DeleteRow(context.Context, dashboard.ViewerContext, string, string) error {
	s.deleteCalls++
	return s.err
}

func (s *stubService) Export(_ context.Context, _ dashboard.ViewerContext, _ string, _ dashboard.Filter, w io.Writer) (string, int, error) {
	_, _ = io.WriteString(w, "a,b\n")
	return "supplier-list-2024-05-01.csv", 1, nil
}

func (s *stubService) Columns(context.Context, dashboard.ViewerContext, string) (dashboard.ColumnSet, dashboard.ColumnSource, error) {
	return s.columns.Clone(), dashboard.SourceRemote, nil
}

func (s *stubService) SaveColumns(_ context.Context, _ dashboard.ViewerContext, _ string, columns dashboard.ColumnSet) error {
	s.saved = append(s.saved, columns)
	return nil
}

type stubTelemetry struct {
	calls int
	last  string
}

func (s *stubTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	s.calls++
	s.last = event
}
