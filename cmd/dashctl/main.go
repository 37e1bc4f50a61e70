package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ettle/strcase"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/queries"
	"github.com/goliatone/go-supply-dashboard/components/tablebuilder"
	"github.com/goliatone/go-supply-dashboard/pkg/config"
	dashboardpkg "github.com/goliatone/go-supply-dashboard/pkg/dashboard"
	"github.com/goliatone/go-supply-dashboard/pkg/logging"
)

type cli struct {
	Globals

	Rows     rowsCmd     `cmd:"" help:"List one page of an entity table."`
	Export   exportCmd   `cmd:"" help:"Export the filtered rows of an entity table as CSV."`
	Columns  columnsCmd  `cmd:"" help:"Show or replace the column set of an entity table."`
	Summary  summaryCmd  `cmd:"" help:"Print the dashboard summary cards and daily work."`
	Tables   tablesCmd   `cmd:"" help:"Manage dynamic table schemas."`
	Scaffold scaffoldCmd `cmd:"" help:"Add an entity table entry to a manifest."`
}

// Globals are shared by every command that talks to the backend.
type Globals struct {
	Config   string   `type:"path" default:"dashboard.yaml" env:"SUPPLY_CONFIG" help:"Path to the dashboard config file."`
	LogLevel string   `default:"warn" help:"Log level (trace, debug, info, warn, error)."`
	Email    string   `help:"Act as this email instead of the signed-in session."`
	Role     []string `help:"Roles used with --email."`
	Token    string   `env:"SUPPLY_TOKEN" help:"Bearer token used with --email."`

	Stdout io.Writer `kong:"-"`
}

func main() {
	var c cli
	c.Stdout = os.Stdout
	ctx := kong.Parse(&c,
		kong.Description("Supply dashboard command line: tables, exports, column sets and scaffolding."),
		kong.UsageOnError(),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
	)
	err := ctx.Run(&c.Globals)
	ctx.FatalIfErrorf(err)
}

func (g *Globals) app() (*dashboardpkg.App, error) {
	logger, err := logging.New(logging.Options{Level: g.LogLevel, Format: "console"})
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(g.Config, config.NewDefaultEnvBinder())
	if err != nil {
		return nil, err
	}
	return dashboardpkg.New(dashboardpkg.Options{Config: cfg, Logger: &logger})
}

func (g *Globals) viewer(app *dashboardpkg.App) (dashboard.ViewerContext, error) {
	if g.Email != "" {
		return dashboard.ViewerContext{Email: g.Email, Roles: g.Role, Token: g.Token}, nil
	}
	return app.Viewer("")
}

func (g *Globals) setup() (*dashboardpkg.App, dashboard.ViewerContext, error) {
	app, err := g.app()
	if err != nil {
		return nil, dashboard.ViewerContext{}, err
	}
	viewer, err := g.viewer(app)
	if err != nil {
		return nil, dashboard.ViewerContext{}, err
	}
	return app, viewer, nil
}

func (g *Globals) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.Stdout, string(data))
	return err
}

type rowsCmd struct {
	Entity string `arg:"" help:"Entity code (e.g. suppliers)."`
	Query  string `short:"q" help:"Search term."`
	Column string `help:"Restrict the search to one column id."`
	Page   int    `default:"1" help:"Page number."`
}

func (cmd *rowsCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	snap, err := queries.NewListRowsQuery(app.Controller).Query(ctx, queries.ListRowsInput{
		Viewer: viewer,
		Entity: cmd.Entity,
		Request: dashboard.ListRequest{
			Filter: dashboard.Filter{Term: cmd.Query, Column: cmd.Column},
			Page:   cmd.Page,
		},
	})
	if err != nil {
		return err
	}
	return g.printJSON(snap)
}

type exportCmd struct {
	Entity string `arg:"" help:"Entity code."`
	Query  string `short:"q" help:"Search term."`
	Column string `help:"Restrict the search to one column id."`
	Out    string `type:"path" default:"." help:"Output directory."`
}

func (cmd *exportCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(cmd.Out, "export-*.csv")
	if err != nil {
		return fmt.Errorf("dashctl: create export: %w", err)
	}
	defer os.Remove(tmp.Name())
	var name string
	export := commands.NewExportRowsCommand(app.Controller, app.Telemetry)
	err = export.Execute(ctx, commands.ExportRowsInput{
		Viewer:   viewer,
		Entity:   cmd.Entity,
		Filter:   dashboard.Filter{Term: cmd.Query, Column: cmd.Column},
		Writer:   tmp,
		FileName: &name,
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	dest := filepath.Join(cmd.Out, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("dashctl: save export: %w", err)
	}
	fmt.Fprintf(g.Stdout, "✓ Exported %s to %s\n", cmd.Entity, dest)
	return nil
}

type columnsCmd struct {
	Entity string `arg:"" help:"Entity code."`
	Save   string `type:"path" help:"JSON or YAML file with the column set to save."`
	Move   string `help:"Column id to move one step (see --direction)."`
	Dir    int    `name:"direction" default:"1" help:"Move direction, -1 left or +1 right."`
}

func (cmd *columnsCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	switch {
	case cmd.Save != "":
		cols, err := readColumns(cmd.Save)
		if err != nil {
			return err
		}
		save := commands.NewSaveColumnsCommand(app.Controller, app.Telemetry)
		if err := save.Execute(ctx, commands.SaveColumnsInput{Viewer: viewer, Entity: cmd.Entity, Columns: cols}); err != nil {
			return err
		}
	case cmd.Move != "":
		move := commands.NewMoveColumnCommand(app.Controller, app.Telemetry)
		if err := move.Execute(ctx, commands.MoveColumnInput{Viewer: viewer, Entity: cmd.Entity, ColumnID: cmd.Move, Direction: cmd.Dir}); err != nil {
			return err
		}
	}
	res, err := queries.NewColumnsQuery(app.Controller).Query(ctx, queries.ColumnsInput{Viewer: viewer, Entity: cmd.Entity})
	if err != nil {
		return err
	}
	return g.printJSON(res)
}

func readColumns(path string) (dashboard.ColumnSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dashctl: read columns: %w", err)
	}
	var cols dashboard.ColumnSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cols)
	default:
		err = json.Unmarshal(data, &cols)
	}
	if err != nil {
		return nil, fmt.Errorf("dashctl: parse columns: %w", err)
	}
	return cols, nil
}

type summaryCmd struct {
	Preview string `help:"Entity shown in the preview panel."`
	Day     string `help:"Daily work day (YYYY-MM-DD), defaults to today."`
}

func (cmd *summaryCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	input := queries.SummaryInput{Viewer: viewer, PreviewEntity: cmd.Preview}
	if cmd.Day != "" {
		day, err := time.Parse(time.DateOnly, cmd.Day)
		if err != nil {
			return fmt.Errorf("dashctl: parse day: %w", err)
		}
		input.Day = day
	}
	view, err := queries.NewSummaryQuery(app.Controller).Query(ctx, input)
	if err != nil {
		return err
	}
	return g.printJSON(view)
}

type tablesCmd struct {
	List   tablesListCmd   `cmd:"" default:"1" help:"List visible schemas."`
	Create tablesCreateCmd `cmd:"" help:"Create a schema from a YAML or JSON file."`
	Update tablesUpdateCmd `cmd:"" help:"Replace a schema from a YAML or JSON file."`
	Delete tablesDeleteCmd `cmd:"" help:"Delete a schema."`
	Rows   tablesRowsCmd   `cmd:"" help:"List the rows of a schema's table."`
}

type tablesListCmd struct{}

func (cmd *tablesListCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	schemas, err := app.Tables.List(ctx, viewer)
	if err != nil {
		return err
	}
	return g.printJSON(schemas)
}

type tablesCreateCmd struct {
	File string `arg:"" type:"existingfile" help:"Schema file."`
}

func (cmd *tablesCreateCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	schema, err := readSchema(cmd.File)
	if err != nil {
		return err
	}
	created, err := app.Tables.Create(ctx, viewer, schema)
	if err != nil {
		return err
	}
	return g.printJSON(created)
}

type tablesUpdateCmd struct {
	ID   string `arg:"" help:"Schema id."`
	File string `arg:"" type:"existingfile" help:"Schema file."`
}

func (cmd *tablesUpdateCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	schema, err := readSchema(cmd.File)
	if err != nil {
		return err
	}
	schema.ID = cmd.ID
	updated, warnings, err := app.Tables.Update(ctx, viewer, schema)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "! %s\n", w.Message)
	}
	return g.printJSON(updated)
}

type tablesDeleteCmd struct {
	ID string `arg:"" help:"Schema id."`
}

func (cmd *tablesDeleteCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	if err := app.Tables.Delete(ctx, viewer, cmd.ID); err != nil {
		return err
	}
	fmt.Fprintf(g.Stdout, "✓ Deleted table %s\n", cmd.ID)
	return nil
}

type tablesRowsCmd struct {
	ID    string `arg:"" help:"Schema id."`
	Query string `short:"q" help:"Search term."`
	Page  int    `default:"1" help:"Page number."`
}

func (cmd *tablesRowsCmd) Run(ctx context.Context, g *Globals) error {
	app, viewer, err := g.setup()
	if err != nil {
		return err
	}
	table, err := app.Tables.Open(ctx, viewer, cmd.ID, tablebuilder.TableOptions{
		Rows:        app.API,
		Preferences: app.Preferences,
		RefreshHook: app.RefreshHook(),
	})
	if err != nil {
		return err
	}
	table.ApplyFilter(dashboard.Filter{Term: cmd.Query})
	return g.printJSON(table.GoToPage(cmd.Page))
}

func readSchema(path string) (tablebuilder.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tablebuilder.Schema{}, fmt.Errorf("dashctl: read schema: %w", err)
	}
	var schema tablebuilder.Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &schema)
	default:
		err = yaml.Unmarshal(data, &schema)
	}
	if err != nil {
		return tablebuilder.Schema{}, fmt.Errorf("dashctl: parse schema: %w", err)
	}
	return schema, nil
}

type scaffoldCmd struct {
	Code         string   `required:"" help:"Entity code used in routes and endpoints (e.g. purchase-returns)."`
	Name         string   `required:"" help:"Display name of the table."`
	Noun         string   `help:"Singular used in add-/update-/delete- endpoints (defaults to the code)."`
	Column       []string `help:"Column as 'Label', 'id:Label' or 'id:Label:altKey' (repeatable)."`
	Hidden       []string `help:"Column ids hidden by default."`
	Required     []string `help:"Required column ids."`
	DateColumn   string   `help:"Column id holding the row date."`
	StatusColumn string   `help:"Column id rendered as a status badge."`
	PageSize     int      `help:"Rows per page."`
	LiveSearch   bool     `help:"Refilter on every keystroke instead of on submit."`
	ManifestPath string   `required:"" type:"path" help:"Manifest YAML file to create or update."`
	Maintainer   []string `help:"Maintainers to record in the manifest."`
	Tag          []string `help:"Tags to record in the manifest."`
	Overwrite    bool     `help:"Replace an existing entry with the same code."`

	Stdout io.Writer `kong:"-"`
}

func (cmd *scaffoldCmd) Run(g *Globals) error {
	out := cmd.Stdout
	if out == nil {
		out = g.Stdout
	}
	if err := cmd.validate(); err != nil {
		return err
	}
	manifestPath, err := filepath.Abs(cmd.ManifestPath)
	if err != nil {
		return fmt.Errorf("dashctl: resolve manifest path: %w", err)
	}
	doc, err := loadOrInitManifest(manifestPath)
	if err != nil {
		return err
	}
	if !cmd.Overwrite {
		for _, item := range doc.Entities {
			if item.Entity.Code == cmd.Code {
				return fmt.Errorf("dashctl: manifest already defines entity %s (use --overwrite to replace)", cmd.Code)
			}
		}
	}

	entity, err := cmd.entity()
	if err != nil {
		return err
	}
	entry := dashboard.ManifestEntity{Entity: entity, Maintainers: cmd.Maintainer, Tags: cmd.Tag}

	replaced := false
	for idx := range doc.Entities {
		if doc.Entities[idx].Entity.Code == cmd.Code {
			doc.Entities[idx] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Entities = append(doc.Entities, entry)
	}
	sort.Slice(doc.Entities, func(i, j int) bool {
		return doc.Entities[i].Entity.Code < doc.Entities[j].Entity.Code
	})

	if err := writeManifest(manifestPath, doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Added %s to %s\n", cmd.Code, manifestPath)
	return nil
}

func (cmd *scaffoldCmd) validate() error {
	if strings.TrimSpace(cmd.Code) == "" || strings.ContainsAny(cmd.Code, " /") {
		return fmt.Errorf("dashctl: entity code %q must be a single path segment", cmd.Code)
	}
	if len(cmd.Column) == 0 {
		return errors.New("dashctl: at least one --column is required")
	}
	return nil
}

func (cmd *scaffoldCmd) entity() (dashboard.EntityConfig, error) {
	noun := cmd.Noun
	if noun == "" {
		noun = cmd.Code
	}
	hidden := make(map[string]bool, len(cmd.Hidden))
	for _, id := range cmd.Hidden {
		hidden[id] = true
	}
	cols := make(dashboard.ColumnSet, 0, len(cmd.Column))
	for _, raw := range cmd.Column {
		col := parseColumn(raw)
		col.Visible = !hidden[col.ID]
		cols = append(cols, col)
	}
	cfg := dashboard.EntityConfig{
		Code:           cmd.Code,
		Name:           cmd.Name,
		Endpoints:      dashboard.StandardEndpoints(cmd.Code, noun),
		DefaultColumns: cols,
		RequiredFields: cmd.Required,
		DateColumn:     cmd.DateColumn,
		StatusColumn:   cmd.StatusColumn,
		LiveSearch:     cmd.LiveSearch,
		PageSize:       cmd.PageSize,
	}
	if cfg.StatusColumn != "" {
		cfg.StatusRules = dashboard.DefaultStatusRules()
	}
	referenced := append([]string{cfg.DateColumn, cfg.StatusColumn}, cfg.RequiredFields...)
	for _, field := range referenced {
		if field != "" && cols.Index(field) < 0 {
			return dashboard.EntityConfig{}, fmt.Errorf("dashctl: %s is not a declared column", field)
		}
	}
	return cfg, cfg.Validate()
}

// parseColumn accepts "Label", "id:Label" or "id:Label:altKey". A bare label
// derives its id in lowerCamel case.
func parseColumn(raw string) dashboard.ColumnDescriptor {
	parts := strings.SplitN(raw, ":", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		return dashboard.ColumnDescriptor{ID: strcase.ToCamel(parts[0]), Label: parts[0]}
	case 2:
		return dashboard.ColumnDescriptor{ID: parts[0], Label: parts[1]}
	default:
		return dashboard.ColumnDescriptor{ID: parts[0], Label: parts[1], AltKey: parts[2]}
	}
}

func loadOrInitManifest(path string) (*dashboard.EntityManifestDocument, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &dashboard.EntityManifestDocument{
				Version:  dashboard.ManifestVersion,
				Entities: []dashboard.ManifestEntity{},
				Source:   path,
			}, nil
		}
		return nil, fmt.Errorf("dashctl: stat manifest: %w", err)
	}
	return dashboard.ReadManifest(path)
}

func writeManifest(path string, doc *dashboard.EntityManifestDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dashctl: mkdir %s: %w", filepath.Dir(path), err)
	}
	tmpDoc := *doc
	tmpDoc.Source = ""

	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("dashctl: create manifest %s: %w", path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	defer encoder.Close()
	if err := encoder.Encode(tmpDoc); err != nil {
		return fmt.Errorf("dashctl: write manifest: %w", err)
	}
	return nil
}
