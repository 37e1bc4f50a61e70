package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/commands"
)

type stubCommander[T any] struct {
	last  T
	calls int
	err   error
	run   func(T)
}

func (s *stubCommander[T]) Execute(ctx context.Context, msg T) error {
	s.last = msg
	s.calls++
	if s.err == nil && s.run != nil {
		s.run(msg)
	}
	return s.err
}

func adminResolver(*http.Request) dashboard.ViewerContext {
	return dashboard.ViewerContext{UserID: "u1", Email: "ops@example.com", Roles: []string{dashboard.RoleAdmin}}
}

func TestHandleSubmitRowCreate(t *testing.T) {
	submit := &stubCommander[commands.SubmitRowInput]{run: func(in commands.SubmitRowInput) {
		*in.Result = dashboard.Row{ID: "r1", Fields: in.Fields}
	}}
	api := &Handlers{Submit: submit, Viewer: adminResolver}
	body := `{"fields":{"supplierName":"Acme","materialCategory":"Steel"}}`
	req := httptest.NewRequest(http.MethodPost, "/tables/suppliers/rows", strings.NewReader(body))
	rec := httptest.NewRecorder()
	api.HandleSubmitRow(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if submit.last.Entity != dashboard.EntitySuppliers || submit.last.Viewer.Email != "ops@example.com" {
		t.Fatalf("expected entity and viewer propagation, got %+v", submit.last)
	}
	var row dashboard.Row
	if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if row.ID != "r1" {
		t.Fatalf("expected created row in response, got %+v", row)
	}
}

func TestHandleSubmitRowUpdateReturnsOK(t *testing.T) {
	submit := &stubCommander[commands.SubmitRowInput]{}
	api := &Handlers{Submit: submit}
	req := httptest.NewRequest(http.MethodPost, "/tables/suppliers/rows", strings.NewReader(`{"id":"r1","fields":{"supplierName":"Acme"}}`))
	rec := httptest.NewRecorder()
	api.HandleSubmitRow(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleSubmitRowValidationMapsTo422(t *testing.T) {
	submit := &stubCommander[commands.SubmitRowInput]{err: &dashboard.ValidationError{Entity: "suppliers", Missing: []string{"Supplier Name"}}}
	api := &Handlers{Submit: submit}
	req := httptest.NewRequest(http.MethodPost, "/tables/suppliers/rows", strings.NewReader(`{"fields":{}}`))
	rec := httptest.NewRecorder()
	api.HandleSubmitRow(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleSubmitRowRejectsBadJSON(t *testing.T) {
	api := &Handlers{Submit: &stubCommander[commands.SubmitRowInput]{}}
	req := httptest.NewRequest(http.MethodPost, "/tables/suppliers/rows", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	api.HandleSubmitRow(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleDeleteRow(t *testing.T) {
	remove := &stubCommander[commands.DeleteRowInput]{}
	api := &Handlers{Delete: remove}
	req := httptest.NewRequest(http.MethodDelete, "/tables/suppliers/rows/r1", nil)
	rec := httptest.NewRecorder()
	api.HandleDeleteRow(rec, req, dashboard.EntitySuppliers, "r1")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if remove.last.RowID != "r1" {
		t.Fatalf("expected row id propagation")
	}
}

func TestHandleDeleteRowNotFound(t *testing.T) {
	remove := &stubCommander[commands.DeleteRowInput]{err: fmt.Errorf("wrap: %w", dashboard.ErrRowNotFound)}
	api := &Handlers{Delete: remove}
	req := httptest.NewRequest(http.MethodDelete, "/tables/suppliers/rows/missing", nil)
	rec := httptest.NewRecorder()
	api.HandleDeleteRow(rec, req, dashboard.EntitySuppliers, "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleSaveColumns(t *testing.T) {
	save := &stubCommander[commands.SaveColumnsInput]{}
	api := &Handlers{SaveColumns: save, Viewer: adminResolver}
	payload := commands.SaveColumnsInput{Columns: dashboard.ColumnSet{{ID: "supplierName", Label: "Supplier", Visible: true}}}
	buf, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/tables/suppliers/columns", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	api.HandleSaveColumns(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(save.last.Columns) != 1 || save.last.Entity != dashboard.EntitySuppliers {
		t.Fatalf("unexpected input %+v", save.last)
	}
}

func TestHandleSaveColumnsForbidden(t *testing.T) {
	save := &stubCommander[commands.SaveColumnsInput]{err: dashboard.ErrAdminRequired}
	api := &Handlers{SaveColumns: save}
	req := httptest.NewRequest(http.MethodPost, "/tables/suppliers/columns", strings.NewReader(`{"columns":[]}`))
	rec := httptest.NewRecorder()
	api.HandleSaveColumns(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleMoveColumn(t *testing.T) {
	move := &stubCommander[commands.MoveColumnInput]{}
	api := &Handlers{MoveColumn: move}
	req := httptest.NewRequest(http.MethodPost, "/tables/suppliers/columns/move", strings.NewReader(`{"column_id":"email","direction":-1}`))
	rec := httptest.NewRecorder()
	api.HandleMoveColumn(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if move.last.ColumnID != "email" || move.last.Direction != -1 {
		t.Fatalf("unexpected input %+v", move.last)
	}
}

func TestHandleRefresh(t *testing.T) {
	refresh := &stubCommander[commands.RefreshEntityInput]{}
	api := &Handlers{Refresh: refresh}
	payload := commands.RefreshEntityInput{Event: dashboard.EntityEvent{Entity: dashboard.EntitySuppliers}}
	buf, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	api.HandleRefresh(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if refresh.last.Event.Entity != dashboard.EntitySuppliers {
		t.Fatalf("expected event propagation")
	}
}

func TestHandleExport(t *testing.T) {
	export := &stubCommander[commands.ExportRowsInput]{run: func(in commands.ExportRowsInput) {
		_, _ = in.Writer.Write([]byte("Supplier Name\nAcme\n"))
		*in.FileName = "Supplier List 2024-05-10.csv"
	}}
	api := &Handlers{Export: export}
	req := httptest.NewRequest(http.MethodGet, "/tables/suppliers/export?q=acme&column=supplierName", nil)
	rec := httptest.NewRecorder()
	api.HandleExport(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if export.last.Filter.Term != "acme" || export.last.Filter.Column != "supplierName" {
		t.Fatalf("expected filter from query, got %+v", export.last.Filter)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "Supplier List 2024-05-10.csv") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Acme") {
		t.Fatalf("expected csv body")
	}
}

func TestHandleExportNothingToExport(t *testing.T) {
	export := &stubCommander[commands.ExportRowsInput]{err: dashboard.ErrNothingToExport}
	api := &Handlers{Export: export}
	req := httptest.NewRequest(http.MethodGet, "/tables/suppliers/export", nil)
	rec := httptest.NewRecorder()
	api.HandleExport(rec, req, dashboard.EntitySuppliers)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestStatusForUnknownEntity(t *testing.T) {
	if got := StatusFor(fmt.Errorf("x: %w", dashboard.ErrUnknownEntity)); got != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", got)
	}
	if got := StatusFor(fmt.Errorf("boom")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}
