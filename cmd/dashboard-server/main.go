package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/gorouter"
	"github.com/goliatone/go-supply-dashboard/components/messaging"
	"github.com/goliatone/go-supply-dashboard/pkg/config"
	dashboardpkg "github.com/goliatone/go-supply-dashboard/pkg/dashboard"
	"github.com/goliatone/go-supply-dashboard/pkg/goadmin"
	"github.com/goliatone/go-supply-dashboard/pkg/logging"
	"github.com/goliatone/go-supply-dashboard/pkg/session"
)

type cli struct {
	Config   string `type:"path" default:"dashboard.yaml" env:"SUPPLY_CONFIG" help:"Path to the dashboard config file."`
	LogLevel string `help:"Override the configured log level."`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Description("Serves the supply dashboard, the chat hub and metrics."),
		kong.UsageOnError(),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c cli) error {
	cfg, err := config.LoadFile(c.Config, config.NewDefaultEnvBinder())
	if err != nil {
		return err
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	hub := messaging.NewHub(logging.Component(logger, "hub"))
	app, err := dashboardpkg.New(dashboardpkg.Options{
		Config: cfg,
		Logger: &logger,
		Hooks:  []dashboard.RefreshHook{&dashboard.NotificationsHook{Client: hub, Channel: messaging.EventEntityUpdated}},
	})
	if err != nil {
		return err
	}
	publishSchemas(ctx, app, logger)

	server := router.NewFiberAdapter()
	if err := mount(server.Router(), app, &logger); err != nil {
		return err
	}

	admin, err := goadmin.New(goadmin.Config{
		EnableDashboard: true,
		Controller:      app.Controller,
		MenuBuilder:     loggingMenuBuilder{logger: logging.Component(logger, "menu")},
		Extra: []goadmin.MenuItem{
			{Code: "dashboard.messages", Label: "Messages", Route: "/messages", Icon: "chat"},
			{Code: "dashboard.profile", Label: "Profile", Route: cfg.Server.BasePath + "/profile", Icon: "user"},
		},
	})
	if err != nil {
		return fmt.Errorf("goadmin init: %w", err)
	}
	for _, role := range []string{dashboard.RoleAdmin, dashboard.RoleClient} {
		if err := admin.Bootstrap(ctx, dashboard.ViewerContext{Roles: []string{role}}); err != nil {
			return fmt.Errorf("bootstrap menu: %w", err)
		}
	}

	side := &http.Server{
		Addr:              cfg.Server.HubAddress,
		Handler:           hubMux(app, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.Address).Str("base", cfg.Server.BasePath).Msg("dashboard listening")
		return server.Serve(cfg.Server.Address)
	})
	if cfg.Server.HubAddress != "" {
		g.Go(func() error {
			logger.Info().Str("addr", cfg.Server.HubAddress).Msg("hub listening")
			if err := side.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(side.Shutdown(shutdown), server.Shutdown(shutdown))
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// mount registers the table, builder and profile routes under the base path.
func mount(r router.Router[*fiber.App], app *dashboardpkg.App, logger *zerolog.Logger) error {
	resolver := viewerResolver(app)
	base := app.Config.Server.BasePath
	if err := gorouter.Register(gorouter.Config[*fiber.App]{
		Router:         r,
		Controller:     app.Controller,
		Commands:       gorouter.NewCommands(app.Controller, app.RefreshHook(), app.Telemetry),
		Broadcast:      app.Broadcast,
		ViewerResolver: resolver,
		BasePath:       base,
	}); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}
	group := r.Group(base)
	registerBuilder(group, app.Tables, resolver)
	registerProfile(group, app, resolver, logger)
	registerNotifications(group, app.Notifications)
	return nil
}

// publishSchemas activates the dynamic tables visible to the signed-in operator.
func publishSchemas(ctx context.Context, app *dashboardpkg.App, logger zerolog.Logger) {
	viewer, err := app.Viewer("")
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			logger.Warn().Err(err).Msg("read session")
		}
		return
	}
	n, err := app.Tables.Publish(ctx, viewer)
	if err != nil {
		logger.Warn().Err(err).Msg("publish dynamic tables")
		return
	}
	logger.Info().Int("tables", n).Msg("dynamic tables published")
}

// viewerResolver prefers a bearer token, then whatever an auth middleware left in locals.
func viewerResolver(app *dashboardpkg.App) gorouter.ViewerResolver {
	return func(ctx router.Context) dashboard.ViewerContext {
		viewer := gorouter.DefaultViewerResolver(ctx)
		if token := bearer(ctx.Header("Authorization")); token != "" {
			fromToken := session.ViewerFromDocument(session.Document{Token: token}, viewer.Locale)
			if fromToken.Scope() != "" {
				return fromToken
			}
		}
		if viewer.Scope() == "" {
			if local, err := app.Viewer(viewer.Locale); err == nil {
				return local
			}
		}
		return viewer
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

type loggingMenuBuilder struct {
	logger *zerolog.Logger
}

func (b loggingMenuBuilder) EnsureMenuItem(_ context.Context, menu string, item goadmin.MenuItem) error {
	b.logger.Debug().Str("menu", menu).Str("code", item.Code).Str("route", item.Route).Int("position", item.Position).Msg("menu item")
	return nil
}
