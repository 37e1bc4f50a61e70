package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/commands"
)

// ViewerResolver extracts the session identity from a request.
type ViewerResolver func(r *http.Request) dashboard.ViewerContext

// Handlers exposes HTTP endpoints backed by shared commands.
type Handlers struct {
	Submit      gocommand.Commander[commands.SubmitRowInput]
	Delete      gocommand.Commander[commands.DeleteRowInput]
	SaveColumns gocommand.Commander[commands.SaveColumnsInput]
	MoveColumn  gocommand.Commander[commands.MoveColumnInput]
	Refresh     gocommand.Commander[commands.RefreshEntityInput]
	Export      gocommand.Commander[commands.ExportRowsInput]
	Viewer      ViewerResolver
}

func (h *Handlers) viewer(r *http.Request) dashboard.ViewerContext {
	if h.Viewer == nil {
		return dashboard.ViewerContext{}
	}
	return h.Viewer(r)
}

// HandleSubmitRow creates a row when the payload has no id, otherwise updates it.
func (h *Handlers) HandleSubmitRow(w http.ResponseWriter, r *http.Request, entity string) {
	var payload commands.SubmitRowInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var row dashboard.Row
	payload.Entity = entity
	payload.Viewer = h.viewer(r)
	payload.Result = &row
	if err := h.Submit.Execute(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if payload.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, row)
}

func (h *Handlers) HandleDeleteRow(w http.ResponseWriter, r *http.Request, entity, rowID string) {
	input := commands.DeleteRowInput{Viewer: h.viewer(r), Entity: entity, RowID: rowID}
	if err := h.Delete.Execute(r.Context(), input); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleSaveColumns(w http.ResponseWriter, r *http.Request, entity string) {
	var payload commands.SaveColumnsInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Entity = entity
	payload.Viewer = h.viewer(r)
	if err := h.SaveColumns.Execute(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) HandleMoveColumn(w http.ResponseWriter, r *http.Request, entity string) {
	var payload commands.MoveColumnInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Entity = entity
	payload.Viewer = h.viewer(r)
	if err := h.MoveColumn.Execute(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload commands.RefreshEntityInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Refresh.Execute(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleExport writes the filtered table as a CSV attachment. Query params
// "q" and "column" narrow the export like the table search.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request, entity string) {
	var (
		name string
		buf  bytes.Buffer
	)
	input := commands.ExportRowsInput{
		Viewer:   h.viewer(r),
		Entity:   entity,
		Filter:   dashboard.Filter{Term: r.URL.Query().Get("q"), Column: r.URL.Query().Get("column")},
		Writer:   &buf,
		FileName: &name,
	}
	if err := h.Export.Execute(r.Context(), input); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// StatusFor maps dashboard errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case dashboard.IsValidation(err),
		errors.Is(err, dashboard.ErrDuplicateColumn):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrUnknownEntity),
		errors.Is(err, dashboard.ErrRowNotFound),
		errors.Is(err, dashboard.ErrColumnNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, dashboard.ErrNothingToExport):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
