package main

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goccy/go-json"
	router "github.com/goliatone/go-router"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/gorouter"
	"github.com/goliatone/go-supply-dashboard/components/dashboard/httpapi"
	"github.com/goliatone/go-supply-dashboard/components/profile"
	"github.com/goliatone/go-supply-dashboard/components/tablebuilder"
	dashboardpkg "github.com/goliatone/go-supply-dashboard/pkg/dashboard"
)

// registerBuilder mounts schema CRUD for the dynamic table builder.
// Rows of an activated schema go through the regular /tables/:entity routes.
func registerBuilder[T any](r router.Router[T], tables *tablebuilder.Service, resolver gorouter.ViewerResolver) {
	r.Get("/builder", router.WrapHandler(func(ctx router.Context) error {
		schemas, err := tables.List(ctx.Context(), resolver(ctx))
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, schemas)
	}))

	r.Post("/builder", router.WrapHandler(func(ctx router.Context) error {
		var schema tablebuilder.Schema
		if err := json.Unmarshal(ctx.Body(), &schema); err != nil {
			return ctx.JSON(http.StatusBadRequest, errorBody(err))
		}
		created, err := tables.Create(ctx.Context(), resolver(ctx), schema)
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusCreated, map[string]any{
			"schema": created,
			"entity": tablebuilder.EntityCode(created.ID),
		})
	}))

	r.Post("/builder/publish", router.WrapHandler(func(ctx router.Context) error {
		n, err := tables.Publish(ctx.Context(), resolver(ctx))
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]int{"published": n})
	}))

	r.Get("/builder/:id", router.WrapHandler(func(ctx router.Context) error {
		schema, err := tables.Get(ctx.Context(), resolver(ctx), ctx.Param("id"))
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, schema)
	}))

	r.Post("/builder/:id", router.WrapHandler(func(ctx router.Context) error {
		var schema tablebuilder.Schema
		if err := json.Unmarshal(ctx.Body(), &schema); err != nil {
			return ctx.JSON(http.StatusBadRequest, errorBody(err))
		}
		schema.ID = ctx.Param("id")
		updated, warnings, err := tables.Update(ctx.Context(), resolver(ctx), schema)
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]any{"schema": updated, "warnings": warnings})
	}))

	r.Delete("/builder/:id", router.WrapHandler(func(ctx router.Context) error {
		if err := tables.Delete(ctx.Context(), resolver(ctx), ctx.Param("id")); err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted"})
	}))
}

// registerNotifications exposes the toast queue so the page can poll and dismiss.
func registerNotifications[T any](r router.Router[T], center *dashboard.NotificationCenter) {
	r.Get("/notifications", router.WrapHandler(func(ctx router.Context) error {
		return ctx.JSON(http.StatusOK, center.Active())
	}))
	r.Delete("/notifications/:id", router.WrapHandler(func(ctx router.Context) error {
		if !center.Dismiss(ctx.Param("id")) {
			return ctx.JSON(http.StatusNotFound, errorBody(errors.New("notification not found")))
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "dismissed"})
	}))
}

type profilePage struct {
	Profile  profile.Profile   `json:"profile"`
	Projects []profile.Project `json:"projects"`
}

// registerProfile mounts the profile page. Each request gets its own view.
func registerProfile[T any](r router.Router[T], app *dashboardpkg.App, resolver gorouter.ViewerResolver, logger *zerolog.Logger) {
	load := func(ctx router.Context) (*profile.View, error) {
		view := profile.NewView(profile.Options{
			Viewer:    resolver(ctx),
			Store:     app.API,
			Notifier:  app.Notifier,
			Telemetry: app.Telemetry,
			Logger:    logger,
		})
		return view, view.Load(ctx.Context())
	}

	r.Get("/profile", router.WrapHandler(func(ctx router.Context) error {
		view, err := load(ctx)
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, profilePage{Profile: view.Profile(), Projects: view.Projects()})
	}))

	r.Post("/profile", router.WrapHandler(func(ctx router.Context) error {
		var draft profile.Profile
		if err := json.Unmarshal(ctx.Body(), &draft); err != nil {
			return ctx.JSON(http.StatusBadRequest, errorBody(err))
		}
		view, err := load(ctx)
		if err != nil {
			return respond(ctx, err)
		}
		view.Edit()
		saved, err := view.Save(ctx.Context(), draft)
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, saved)
	}))

	r.Post("/profile/image", router.WrapHandler(func(ctx router.Context) error {
		data := ctx.Body()
		if len(data) == 0 {
			return ctx.JSON(http.StatusBadRequest, errorBody(errors.New("image body is empty")))
		}
		name := ctx.Query("filename")
		if name == "" {
			name = "profile"
		}
		view, err := load(ctx)
		if err != nil {
			return respond(ctx, err)
		}
		url, err := view.UploadImage(ctx.Context(), name, data)
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"url": url})
	}))

	r.Post("/profile/projects", router.WrapHandler(func(ctx router.Context) error {
		var p profile.Project
		if err := json.Unmarshal(ctx.Body(), &p); err != nil {
			return ctx.JSON(http.StatusBadRequest, errorBody(err))
		}
		view, err := load(ctx)
		if err != nil {
			return respond(ctx, err)
		}
		var saved profile.Project
		if p.ID == "" {
			saved, err = view.AddProject(ctx.Context(), p)
		} else {
			saved, err = view.EditProject(ctx.Context(), p)
		}
		if err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, saved)
	}))

	r.Delete("/profile/projects/:id", router.WrapHandler(func(ctx router.Context) error {
		view, err := load(ctx)
		if err != nil {
			return respond(ctx, err)
		}
		if err := view.DeleteProject(ctx.Context(), ctx.Param("id")); err != nil {
			return respond(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted"})
	}))
}

// statusFor extends the table status mapping with builder and profile errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tablebuilder.ErrSchemaNotFound),
		errors.Is(err, profile.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, tablebuilder.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, tablebuilder.ErrSchemaName),
		errors.Is(err, tablebuilder.ErrNoColumns),
		errors.Is(err, tablebuilder.ErrDuplicateColumn),
		isFieldErrors(err):
		return http.StatusUnprocessableEntity
	default:
		return httpapi.StatusFor(err)
	}
}

func isFieldErrors(err error) bool {
	var fields validation.Errors
	return errors.As(err, &fields)
}

func respond(ctx router.Context, err error) error {
	return ctx.JSON(statusFor(err), errorBody(err))
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
