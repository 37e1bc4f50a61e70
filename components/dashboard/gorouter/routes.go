package gorouter

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gocommand "github.com/goliatone/go-command"
	router "github.com/goliatone/go-router"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/httpapi"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/queries"
)

// ViewerResolver converts a router.Context into a dashboard.ViewerContext.
type ViewerResolver func(router.Context) dashboard.ViewerContext

// Commands groups the write side mounted by Register. Nil commanders skip their route.
type Commands struct {
	Submit      gocommand.Commander[commands.SubmitRowInput]
	Delete      gocommand.Commander[commands.DeleteRowInput]
	SaveColumns gocommand.Commander[commands.SaveColumnsInput]
	MoveColumn  gocommand.Commander[commands.MoveColumnInput]
	Refresh     gocommand.Commander[commands.RefreshEntityInput]
	Export      gocommand.Commander[commands.ExportRowsInput]
}

// NewCommands wires every command against the controller.
func NewCommands(ctrl *dashboard.Controller, hook dashboard.RefreshHook, telemetry commands.Telemetry) Commands {
	return Commands{
		Submit:      commands.NewSubmitRowCommand(ctrl, telemetry),
		Delete:      commands.NewDeleteRowCommand(ctrl, telemetry),
		SaveColumns: commands.NewSaveColumnsCommand(ctrl, telemetry),
		MoveColumn:  commands.NewMoveColumnCommand(ctrl, telemetry),
		Refresh:     commands.NewRefreshEntityCommand(hook, telemetry),
		Export:      commands.NewExportRowsCommand(ctrl, telemetry),
	}
}

// Config wires go-router with the dashboard controller, commands, and hooks.
type Config[T any] struct {
	Router         router.Router[T]
	Controller     *dashboard.Controller
	Commands       Commands
	Broadcast      *dashboard.BroadcastHook
	ViewerResolver ViewerResolver
	BasePath       string
	Routes         RouteConfig
}

// RouteConfig customizes the relative paths used for dashboard endpoints.
type RouteConfig struct {
	Summary     string
	SummaryJSON string
	Chart       string
	Tables      string
	Table       string
	Rows        string
	Row         string
	Columns     string
	MoveColumn  string
	Export      string
	Refresh     string
	WebSocket   string
}

// Register mounts dashboard routes (HTML, JSON, REST, WebSocket) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Controller == nil {
		return errors.New("gorouter: controller is required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := cfg.BasePath
	if base == "" {
		base = "/dashboard"
	}
	resolver := cfg.ViewerResolver
	if resolver == nil {
		resolver = DefaultViewerResolver
	}
	ctrl := cfg.Controller
	rowsQuery := queries.NewListRowsQuery(ctrl)
	columnsQuery := queries.NewColumnsQuery(ctrl)
	summaryQuery := queries.NewSummaryQuery(ctrl)

	group := cfg.Router.Group(base)

	group.Get(routes.Summary, router.WrapHandler(func(ctx router.Context) error {
		html, err := ctrl.RenderSummary(ctx.Context(), resolver(ctx))
		if err != nil {
			return respondError(ctx, err)
		}
		return sendHTML(ctx, html)
	}))

	group.Get(routes.SummaryJSON, router.WrapHandler(func(ctx router.Context) error {
		input := queries.SummaryInput{
			Viewer:        resolver(ctx),
			PreviewEntity: ctx.Query("preview"),
		}
		if raw := ctx.Query("day"); raw != "" {
			day, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return ctx.JSON(http.StatusBadRequest, errorBody(err))
			}
			input.Day = day
		}
		view, err := summaryQuery.Query(ctx.Context(), input)
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, view)
	}))

	group.Get(routes.Chart, router.WrapHandler(func(ctx router.Context) error {
		summary, err := ctrl.Summary(ctx.Context(), resolver(ctx))
		if summary == nil {
			return respondError(ctx, err)
		}
		html, err := summary.SummaryChart()
		if err != nil {
			return respondError(ctx, err)
		}
		return sendHTML(ctx, html)
	}))

	group.Get(routes.Tables, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		entities := ctrl.Registry().Entities()
		out := make([]map[string]string, 0, len(entities))
		for _, cfg := range entities {
			out = append(out, map[string]string{
				"code":  cfg.Code,
				"name":  cfg.DisplayName(),
				"route": "/" + viewer.RoleSegment() + "/" + cfg.Code,
			})
		}
		return ctx.JSON(http.StatusOK, out)
	}))

	group.Get(routes.Table, router.WrapHandler(func(ctx router.Context) error {
		html, err := ctrl.RenderTable(ctx.Context(), resolver(ctx), ctx.Param("entity"), listRequest(ctx))
		if err != nil {
			return respondError(ctx, err)
		}
		return sendHTML(ctx, html)
	}))

	group.Get(routes.Rows, router.WrapHandler(func(ctx router.Context) error {
		snap, err := rowsQuery.Query(ctx.Context(), queries.ListRowsInput{
			Viewer:  resolver(ctx),
			Entity:  ctx.Param("entity"),
			Request: listRequest(ctx),
		})
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, snap)
	}))

	group.Get(routes.Columns, router.WrapHandler(func(ctx router.Context) error {
		res, err := columnsQuery.Query(ctx.Context(), queries.ColumnsInput{
			Viewer: resolver(ctx),
			Entity: ctx.Param("entity"),
		})
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, res)
	}))

	registerCommands(group, cfg.Commands, resolver, routes)

	if cfg.Broadcast != nil {
		registerWebSocket(group, cfg.Broadcast, routes.WebSocket)
	}
	return nil
}

func registerCommands[T any](r router.Router[T], cmds Commands, resolver ViewerResolver, routes RouteConfig) {
	if cmds.Submit != nil {
		r.Post(routes.Rows, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.SubmitRowInput
			if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
				return ctx.JSON(http.StatusBadRequest, errorBody(err))
			}
			var row dashboard.Row
			payload.Viewer = resolver(ctx)
			payload.Entity = ctx.Param("entity")
			payload.Result = &row
			if err := cmds.Submit.Execute(ctx.Context(), payload); err != nil {
				return respondError(ctx, err)
			}
			status := http.StatusOK
			if payload.ID == "" {
				status = http.StatusCreated
			}
			return ctx.JSON(status, row)
		}))
	}

	if cmds.Delete != nil {
		r.Delete(routes.Row, router.WrapHandler(func(ctx router.Context) error {
			id := ctx.Param("id")
			if id == "" {
				return ctx.JSON(http.StatusBadRequest, errorBody(errors.New("row id is required")))
			}
			input := commands.DeleteRowInput{Viewer: resolver(ctx), Entity: ctx.Param("entity"), RowID: id}
			if err := cmds.Delete.Execute(ctx.Context(), input); err != nil {
				return respondError(ctx, err)
			}
			return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted"})
		}))
	}

	if cmds.SaveColumns != nil {
		r.Post(routes.Columns, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.SaveColumnsInput
			if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
				return ctx.JSON(http.StatusBadRequest, errorBody(err))
			}
			payload.Viewer = resolver(ctx)
			payload.Entity = ctx.Param("entity")
			if err := cmds.SaveColumns.Execute(ctx.Context(), payload); err != nil {
				return respondError(ctx, err)
			}
			return ctx.JSON(http.StatusOK, map[string]string{"status": "saved"})
		}))
	}

	if cmds.MoveColumn != nil {
		r.Post(routes.MoveColumn, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.MoveColumnInput
			if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
				return ctx.JSON(http.StatusBadRequest, errorBody(err))
			}
			payload.Viewer = resolver(ctx)
			payload.Entity = ctx.Param("entity")
			if err := cmds.MoveColumn.Execute(ctx.Context(), payload); err != nil {
				return respondError(ctx, err)
			}
			return ctx.JSON(http.StatusOK, map[string]string{"status": "moved"})
		}))
	}

	if cmds.Export != nil {
		r.Get(routes.Export, router.WrapHandler(func(ctx router.Context) error {
			var (
				name string
				buf  bytes.Buffer
			)
			input := commands.ExportRowsInput{
				Viewer:   resolver(ctx),
				Entity:   ctx.Param("entity"),
				Filter:   dashboard.Filter{Term: ctx.Query("q"), Column: ctx.Query("column")},
				Writer:   &buf,
				FileName: &name,
			}
			if err := cmds.Export.Execute(ctx.Context(), input); err != nil {
				return respondError(ctx, err)
			}
			ctx.SetHeader("Content-Type", "text/csv; charset=utf-8")
			ctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
			return ctx.Send(buf.Bytes())
		}))
	}

	if cmds.Refresh != nil {
		r.Post(routes.Refresh, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.RefreshEntityInput
			if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
				return ctx.JSON(http.StatusBadRequest, errorBody(err))
			}
			if payload.Event.Actor == "" {
				payload.Event.Actor = resolver(ctx).Scope()
			}
			if err := cmds.Refresh.Execute(ctx.Context(), payload); err != nil {
				return respondError(ctx, err)
			}
			return ctx.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
		}))
	}
}

func registerWebSocket[T any](r router.Router[T], hook *dashboard.BroadcastHook, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		events, cancel := hook.Subscribe()
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

func listRequest(ctx router.Context) dashboard.ListRequest {
	page, _ := strconv.Atoi(ctx.Query("page"))
	return dashboard.ListRequest{
		Filter: dashboard.Filter{Term: ctx.Query("q"), Column: ctx.Query("column")},
		Page:   page,
	}
}

// DefaultViewerResolver reads the identity an auth middleware stored in locals.
func DefaultViewerResolver(ctx router.Context) dashboard.ViewerContext {
	var viewer dashboard.ViewerContext
	if v, ok := ctx.Locals("user_id").(string); ok {
		viewer.UserID = v
	}
	if v, ok := ctx.Locals("email").(string); ok {
		viewer.Email = v
	}
	if v, ok := ctx.Locals("token").(string); ok {
		viewer.Token = v
	}
	if roles, ok := ctx.Locals("roles").([]string); ok {
		viewer.Roles = roles
	} else if role, ok := ctx.Locals("role").(string); ok && role != "" {
		viewer.Roles = []string{role}
	}
	viewer.Locale = inferLocale(ctx)
	return viewer
}

func inferLocale(ctx router.Context) string {
	if locale, ok := ctx.Locals("locale").(string); ok && locale != "" {
		return locale
	}
	if locale := strings.TrimSpace(ctx.Query("locale")); locale != "" {
		return strings.ToLower(locale)
	}
	if header := ctx.Header("Accept-Language"); header != "" {
		return parseAcceptLanguage(header)
	}
	return ""
}

func parseAcceptLanguage(header string) string {
	for _, token := range strings.Split(header, ",") {
		token = strings.TrimSpace(token)
		if idx := strings.Index(token, ";"); idx >= 0 {
			token = token[:idx]
		}
		if token != "" {
			return strings.ToLower(token)
		}
	}
	return ""
}

func sendHTML(ctx router.Context, html string) error {
	ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
	return ctx.Send([]byte(html))
}

func respondError(ctx router.Context, err error) error {
	return ctx.JSON(httpapi.StatusFor(err), errorBody(err))
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Summary == "" {
		routes.Summary = "/"
	}
	if routes.SummaryJSON == "" {
		routes.SummaryJSON = "/_summary"
	}
	if routes.Chart == "" {
		routes.Chart = "/_summary/chart"
	}
	if routes.Tables == "" {
		routes.Tables = "/tables"
	}
	if routes.Table == "" {
		routes.Table = "/tables/:entity"
	}
	if routes.Rows == "" {
		routes.Rows = "/tables/:entity/rows"
	}
	if routes.Row == "" {
		routes.Row = "/tables/:entity/rows/:id"
	}
	if routes.Columns == "" {
		routes.Columns = "/tables/:entity/columns"
	}
	if routes.MoveColumn == "" {
		routes.MoveColumn = "/tables/:entity/columns/move"
	}
	if routes.Export == "" {
		routes.Export = "/tables/:entity/export"
	}
	if routes.Refresh == "" {
		routes.Refresh = "/refresh"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/ws"
	}
	return routes
}
