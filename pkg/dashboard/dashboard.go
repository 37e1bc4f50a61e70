// Package dashboard assembles the supply dashboard from configuration: the
// backend client, session, caches, telemetry and the views built on them.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	core "github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-supply-dashboard/components/messaging"
	"github.com/goliatone/go-supply-dashboard/components/profile"
	"github.com/goliatone/go-supply-dashboard/components/tablebuilder"
	"github.com/goliatone/go-supply-dashboard/pkg/api"
	"github.com/goliatone/go-supply-dashboard/pkg/config"
	"github.com/goliatone/go-supply-dashboard/pkg/localcache"
	"github.com/goliatone/go-supply-dashboard/pkg/session"
	"github.com/goliatone/go-supply-dashboard/pkg/telemetry"
)

// Controller exposes the underlying components/dashboard.Controller type.
type Controller = core.Controller

// ControllerOptions re-export for convenience.
type ControllerOptions = core.ControllerOptions

// NewController proxies to the internal constructor.
func NewController(opts ControllerOptions) *Controller {
	return core.NewController(opts)
}

// Options configures New.
type Options struct {
	Config     config.Config
	Logger     *zerolog.Logger
	HTTPClient *http.Client
	Registry   *core.Registry
	// Notifier receives user-facing notifications. Defaults to a NotificationCenter.
	Notifier core.Notifier
	// Renderer is optional; the embedded templates are used when nil.
	Renderer core.Renderer
	// Hooks also receive every entity event after the broadcast.
	Hooks []core.RefreshHook
}

// App holds the wired collaborators shared by the server and the CLI.
type App struct {
	Config        config.Config
	Logger        zerolog.Logger
	Registry      *core.Registry
	API           *api.Client
	Session       *session.Session
	Cache         *localcache.HeaderCache
	Preferences   *core.ColumnPreferences
	Notifications *core.NotificationCenter
	Notifier      core.Notifier
	Broadcast     *core.BroadcastHook
	Hooks         []core.RefreshHook
	Charts        *core.ChartCache
	Metrics       *telemetry.Prometheus
	MetricsReg    *prometheus.Registry
	Telemetry     core.Telemetry
	Tables        *tablebuilder.Service
	Controller    *Controller
}

// New builds the App. The configured manifest is loaded into the registry.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	registry := opts.Registry
	if registry == nil {
		registry = core.NewRegistry()
	}
	client, err := api.New(api.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.API.Timeout(),
		Logger:     &logger,
	})
	if err != nil {
		return nil, err
	}

	var cache *localcache.HeaderCache
	var headerCache core.HeaderCache
	if cfg.Cache.Dir != "" {
		cache, err = localcache.New(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		headerCache = cache
	} else {
		headerCache = core.NewInMemoryHeaderCache()
	}

	app := &App{
		Config:        cfg,
		Logger:        logger,
		Registry:      registry,
		API:           client,
		Session:       session.New(cfg.Session.PersistentPath(), cfg.Session.SessionPath()),
		Cache:         cache,
		Preferences:   core.NewColumnPreferences(client, headerCache, logger),
		Notifications: core.NewNotificationCenter(5 * time.Second),
		Broadcast:     core.NewBroadcastHook(),
		Hooks:         opts.Hooks,
		Charts:        core.NewChartCache(cfg.Cache.ChartTTL()),
		Metrics:       telemetry.NewPrometheus(""),
	}
	app.Notifier = opts.Notifier
	if app.Notifier == nil {
		app.Notifier = app.Notifications
	}
	app.MetricsReg = telemetry.NewRegistry(app.Metrics.Collectors()...)
	app.Telemetry = telemetry.Multi{app.Metrics, telemetry.NewLog(logger)}

	if cfg.ManifestPath != "" {
		load := commands.NewLoadManifestsCommand(registry, app.Telemetry)
		if err := load.Execute(context.Background(), commands.LoadManifestsInput{Paths: []string{cfg.ManifestPath}}); err != nil {
			return nil, fmt.Errorf("dashboard: %w", err)
		}
	}

	app.Tables = tablebuilder.NewService(tablebuilder.Options{
		Store:     client,
		Registry:  registry,
		Notifier:  app.Notifier,
		Telemetry: app.Telemetry,
		Logger:    &logger,
	})

	renderer := opts.Renderer
	if renderer == nil {
		renderer, err = core.NewTemplateRenderer()
		if err != nil {
			return nil, fmt.Errorf("dashboard: templates: %w", err)
		}
	}

	app.Controller = core.NewController(core.ControllerOptions{
		Registry:    registry,
		Rows:        client,
		Preferences: app.Preferences,
		Validators:  app.Tables,
		Notifier:    app.Notifier,
		RefreshHook: app.RefreshHook(),
		Telemetry:   app.Telemetry,
		Logger:      &logger,
		ChartCache:  app.Charts,
		Renderer:    renderer,
	})
	return app, nil
}

// RefreshHook broadcasts entity events and drops cached charts whose counts changed.
func (a *App) RefreshHook() core.RefreshHook {
	hooks := core.MultiHook{chartPurge{charts: a.Charts}, a.Broadcast}
	return append(hooks, a.Hooks...)
}

// Viewer reads the signed-in identity from the session stores.
func (a *App) Viewer(locale string) (core.ViewerContext, error) {
	return a.Session.Viewer(locale)
}

// Profile builds the profile view for viewer.
func (a *App) Profile(viewer core.ViewerContext) *profile.View {
	return profile.NewView(profile.Options{
		Viewer:    viewer,
		Store:     a.API,
		Session:   a.Session,
		Notifier:  a.Notifier,
		Telemetry: a.Telemetry,
		Logger:    &a.Logger,
	})
}

// Messenger connects the messaging view for viewer to the configured chat endpoint.
func (a *App) Messenger(ctx context.Context, viewer core.ViewerContext, conversations []messaging.Conversation) (*messaging.Client, error) {
	if a.Config.Messaging.URL == "" {
		return nil, fmt.Errorf("dashboard: messaging url is not configured")
	}
	return messaging.Dial(ctx, messaging.Options{
		URL:           a.Config.Messaging.URL,
		Viewer:        viewer,
		Conversations: conversations,
		History:       a.API,
		Notifier:      a.Notifier,
		Logger:        &a.Logger,
		TypingTTL:     a.Config.Messaging.TypingTTL(),
	})
}

type chartPurge struct {
	charts *core.ChartCache
}

func (p chartPurge) EntityUpdated(context.Context, core.EntityEvent) error {
	p.charts.Purge()
	return nil
}
