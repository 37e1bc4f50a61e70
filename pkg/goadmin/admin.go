package goadmin

import (
	"context"
	"errors"
	"fmt"

	core "github.com/goliatone/go-supply-dashboard/components/dashboard"
	dashboardpkg "github.com/goliatone/go-supply-dashboard/pkg/dashboard"
)

// MenuBuilder ensures dashboard entries exist within the admin navigation.
type MenuBuilder interface {
	EnsureMenuItem(ctx context.Context, menuCode string, item MenuItem) error
}

// MenuItem captures dashboard link metadata.
type MenuItem struct {
	Code     string
	Label    string
	Route    string
	Icon     string
	Position int
}

// Config wires the dashboard controller and feature flags into an admin shell.
type Config struct {
	EnableDashboard bool
	MenuCode        string
	MenuBuilder     MenuBuilder
	Controller      *dashboardpkg.Controller
	DefaultMenuItem MenuItem
	// Extra items appended after the entity tables, e.g. messages or profile.
	Extra []MenuItem
}

// Admin exposes helpers for go-admin style applications.
type Admin struct {
	cfg Config
}

// New creates an Admin helper that can seed dashboard menus.
func New(cfg Config) (*Admin, error) {
	if cfg.EnableDashboard && cfg.Controller == nil {
		return nil, errors.New("goadmin: dashboard controller is required when enabled")
	}
	if cfg.MenuCode == "" {
		cfg.MenuCode = "admin.main"
	}
	if cfg.DefaultMenuItem.Label == "" {
		cfg.DefaultMenuItem.Label = "Dashboard"
	}
	if cfg.DefaultMenuItem.Code == "" {
		cfg.DefaultMenuItem.Code = "dashboard"
	}
	if cfg.DefaultMenuItem.Icon == "" {
		cfg.DefaultMenuItem.Icon = "home"
	}
	return &Admin{cfg: cfg}, nil
}

// Dashboard exposes the configured controller when enabled.
func (a *Admin) Dashboard() *dashboardpkg.Controller {
	if !a.cfg.EnableDashboard {
		return nil
	}
	return a.cfg.Controller
}

// MenuItems lists the navigation for viewer: the summary, one item per
// registered entity under the viewer's role segment, then the extras.
func (a *Admin) MenuItems(viewer core.ViewerContext) []MenuItem {
	segment := "/" + viewer.RoleSegment()
	root := a.cfg.DefaultMenuItem
	if root.Route == "" {
		root.Route = segment + "/dashboard"
	}
	items := []MenuItem{root}
	for _, cfg := range a.cfg.Controller.Registry().Entities() {
		items = append(items, MenuItem{
			Code:     "dashboard." + cfg.Code,
			Label:    cfg.DisplayName(),
			Route:    segment + "/" + cfg.Code,
			Icon:     "table",
			Position: len(items),
		})
	}
	for _, extra := range a.cfg.Extra {
		extra.Position = len(items)
		items = append(items, extra)
	}
	return items
}

// Bootstrap seeds menu entries for viewer when dashboard support is enabled.
func (a *Admin) Bootstrap(ctx context.Context, viewer core.ViewerContext) error {
	if !a.cfg.EnableDashboard || a.cfg.MenuBuilder == nil {
		return nil
	}
	for _, item := range a.MenuItems(viewer) {
		if err := a.cfg.MenuBuilder.EnsureMenuItem(ctx, a.cfg.MenuCode, item); err != nil {
			return fmt.Errorf("goadmin: ensure %s: %w", item.Code, err)
		}
	}
	return nil
}
