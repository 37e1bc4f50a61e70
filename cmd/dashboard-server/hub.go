package main

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/httpapi"
	"github.com/goliatone/go-supply-dashboard/components/messaging"
	dashboardpkg "github.com/goliatone/go-supply-dashboard/pkg/dashboard"
	"github.com/goliatone/go-supply-dashboard/pkg/session"
	"github.com/goliatone/go-supply-dashboard/pkg/telemetry"
)

// hubMux serves what needs a plain net/http stack: the chat socket (gorilla
// upgrades need a hijackable connection), metrics and the command API for
// callers that do not go through fiber.
func hubMux(app *dashboardpkg.App, hub *messaging.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/events/ws", app.Broadcast.ServeWebSocket)
	mux.HandleFunc("GET /events", app.Broadcast.ServeSSE)
	mux.HandleFunc("GET /online", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"users": hub.Online()})
	})
	if app.Config.Metrics.Enabled {
		mux.Handle("GET "+app.Config.Metrics.Path, telemetry.Handler(app.MetricsReg))
	}

	api := &httpapi.Handlers{
		Submit:      commands.NewSubmitRowCommand(app.Controller, app.Telemetry),
		Delete:      commands.NewDeleteRowCommand(app.Controller, app.Telemetry),
		SaveColumns: commands.NewSaveColumnsCommand(app.Controller, app.Telemetry),
		MoveColumn:  commands.NewMoveColumnCommand(app.Controller, app.Telemetry),
		Refresh:     commands.NewRefreshEntityCommand(app.RefreshHook(), app.Telemetry),
		Export:      commands.NewExportRowsCommand(app.Controller, app.Telemetry),
		Viewer:      requestViewer(app),
	}
	mux.HandleFunc("POST /api/tables/{entity}/rows", func(w http.ResponseWriter, r *http.Request) {
		api.HandleSubmitRow(w, r, r.PathValue("entity"))
	})
	mux.HandleFunc("DELETE /api/tables/{entity}/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.HandleDeleteRow(w, r, r.PathValue("entity"), r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/tables/{entity}/columns", func(w http.ResponseWriter, r *http.Request) {
		api.HandleSaveColumns(w, r, r.PathValue("entity"))
	})
	mux.HandleFunc("POST /api/tables/{entity}/columns/move", func(w http.ResponseWriter, r *http.Request) {
		api.HandleMoveColumn(w, r, r.PathValue("entity"))
	})
	mux.HandleFunc("GET /api/tables/{entity}/export", func(w http.ResponseWriter, r *http.Request) {
		api.HandleExport(w, r, r.PathValue("entity"))
	})
	mux.HandleFunc("POST /api/refresh", api.HandleRefresh)
	return mux
}

func requestViewer(app *dashboardpkg.App) httpapi.ViewerResolver {
	return func(r *http.Request) dashboard.ViewerContext {
		locale := strings.ToLower(strings.TrimSpace(strings.Split(r.Header.Get("Accept-Language"), ",")[0]))
		if i := strings.Index(locale, ";"); i >= 0 {
			locale = locale[:i]
		}
		if token := bearer(r.Header.Get("Authorization")); token != "" {
			if viewer := session.ViewerFromDocument(session.Document{Token: token}, locale); viewer.Scope() != "" {
				return viewer
			}
		}
		viewer, err := app.Viewer(locale)
		if err != nil {
			return dashboard.ViewerContext{Locale: locale}
		}
		return viewer
	}
}
