package profile

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// Profile is the editable user record.
type Profile struct {
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
	Email    string `json:"email"`
	Location string `json:"location"`
	Bio      string `json:"bio"`
	Image    string `json:"image,omitempty"`
}

// Validate checks the fields a save requires.
func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
	)
}

// Project is one portfolio entry.
type Project struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// Validate requires a name.
func (p Project) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
	)
}

// Store is the backend for profiles, images and projects.
type Store interface {
	FetchProfile(ctx context.Context, viewer dashboard.ViewerContext) (Profile, error)
	SaveProfile(ctx context.Context, viewer dashboard.ViewerContext, p Profile) (Profile, error)
	UploadImage(ctx context.Context, viewer dashboard.ViewerContext, filename string, r io.Reader) (string, error)
	ListProjects(ctx context.Context, viewer dashboard.ViewerContext) ([]Project, error)
	CreateProject(ctx context.Context, viewer dashboard.ViewerContext, p Project) (Project, error)
	UpdateProject(ctx context.Context, viewer dashboard.ViewerContext, p Project) (Project, error)
	DeleteProject(ctx context.Context, viewer dashboard.ViewerContext, id string) error
}

// SessionCache receives profile fields so the cached session user stays current.
type SessionCache interface {
	MergeUser(ctx context.Context, fields map[string]any) error
}

var (
	ErrNotEditing      = errors.New("profile: not in edit mode")
	ErrProjectNotFound = errors.New("profile: project not found")
	errMissingStore    = errors.New("profile: store not configured")
)

// Options wires a View.
type Options struct {
	Viewer    dashboard.ViewerContext
	Store     Store
	Session   SessionCache
	Notifier  dashboard.Notifier
	Telemetry dashboard.Telemetry
	Logger    *zerolog.Logger
}

// View is the profile page: the user record with an edit mode, a two-step
// image upload and project CRUD.
type View struct {
	opts   Options
	logger zerolog.Logger

	mu       sync.RWMutex
	profile  Profile
	projects []Project
	editing  bool
	preview  string
}

// NewView builds a profile view.
func NewView(opts Options) *View {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &View{opts: opts, logger: logger.With().Str("component", "profile").Logger()}
}

// Load fetches the profile and projects concurrently.
func (v *View) Load(ctx context.Context) error {
	if v.opts.Store == nil {
		return errMissingStore
	}
	var (
		p        Profile
		projects []Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = v.opts.Store.FetchProfile(gctx, v.opts.Viewer)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = v.opts.Store.ListProjects(gctx, v.opts.Viewer)
		return err
	})
	if err := g.Wait(); err != nil {
		v.notify(ctx, dashboard.LevelError, "Failed to load profile", err.Error())
		return fmt.Errorf("profile: load: %w", err)
	}
	v.mu.Lock()
	v.profile = p
	v.projects = projects
	v.mu.Unlock()
	return nil
}

// Profile returns the current profile. While an upload is pending the image is the local preview.
func (v *View) Profile() Profile {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p := v.profile
	if v.preview != "" {
		p.Image = v.preview
	}
	return p
}

// Projects returns the loaded projects.
func (v *View) Projects() []Project {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Project(nil), v.projects...)
}

// Editing reports whether edit mode is on.
func (v *View) Editing() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.editing
}

// Edit enters edit mode and returns the form draft.
func (v *View) Edit() Profile {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editing = true
	return v.profile
}

// CancelEdit leaves edit mode discarding the draft.
func (v *View) CancelEdit() {
	v.mu.Lock()
	v.editing = false
	v.mu.Unlock()
}

// Save submits the whole profile, mirrors it into the session cache and leaves edit mode.
// A failed save keeps edit mode on.
func (v *View) Save(ctx context.Context, draft Profile) (Profile, error) {
	if v.opts.Store == nil {
		return Profile{}, errMissingStore
	}
	if !v.Editing() {
		return Profile{}, ErrNotEditing
	}
	if err := draft.Validate(); err != nil {
		v.notify(ctx, dashboard.LevelError, "Invalid profile", err.Error())
		return Profile{}, err
	}
	saved, err := v.opts.Store.SaveProfile(ctx, v.opts.Viewer, draft)
	if err != nil {
		v.notify(ctx, dashboard.LevelError, "Failed to update profile", err.Error())
		return Profile{}, fmt.Errorf("profile: save: %w", err)
	}
	if saved == (Profile{}) {
		saved = draft
	}
	v.mu.Lock()
	v.profile = saved
	v.editing = false
	v.mu.Unlock()
	v.mirror(ctx, map[string]any{
		"name":     saved.Name,
		"mobile":   saved.Mobile,
		"email":    saved.Email,
		"location": saved.Location,
		"bio":      saved.Bio,
		"image":    saved.Image,
	})
	v.notify(ctx, dashboard.LevelSuccess, "Profile updated", "")
	v.record(ctx, "profile.save", nil)
	return saved, nil
}

// PreviewImage shows data immediately as a data URI without uploading.
func (v *View) PreviewImage(data []byte) string {
	uri := DataURI(data)
	v.mu.Lock()
	v.preview = uri
	v.mu.Unlock()
	return uri
}

// UploadImage previews data, uploads it and replaces the preview with the
// returned URL, which is persisted to the session cache. On failure the
// previous image is restored.
func (v *View) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	if v.opts.Store == nil {
		return "", errMissingStore
	}
	v.PreviewImage(data)
	url, err := v.opts.Store.UploadImage(ctx, v.opts.Viewer, filename, bytes.NewReader(data))
	v.mu.Lock()
	v.preview = ""
	if err == nil {
		v.profile.Image = url
	}
	v.mu.Unlock()
	if err != nil {
		v.notify(ctx, dashboard.LevelError, "Image upload failed", err.Error())
		return "", fmt.Errorf("profile: upload: %w", err)
	}
	v.mirror(ctx, map[string]any{"image": url})
	v.notify(ctx, dashboard.LevelSuccess, "Profile image updated", "")
	v.record(ctx, "profile.image", map[string]any{"bytes": len(data)})
	return url, nil
}

// DataURI encodes data as a base64 data URI with a sniffed content type.
func DataURI(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// AddProject creates a project.
func (v *View) AddProject(ctx context.Context, p Project) (Project, error) {
	if err := v.checkProject(ctx, p); err != nil {
		return Project{}, err
	}
	p.ID = ""
	created, err := v.opts.Store.CreateProject(ctx, v.opts.Viewer, p)
	if err != nil {
		v.notify(ctx, dashboard.LevelError, "Failed to add project", err.Error())
		return Project{}, fmt.Errorf("profile: add project: %w", err)
	}
	if created.Name == "" {
		id := created.ID
		created = p
		created.ID = id
	}
	v.mu.Lock()
	v.projects = append(v.projects, created)
	v.mu.Unlock()
	v.notify(ctx, dashboard.LevelSuccess, "Project added", created.Name)
	v.record(ctx, "profile.project.create", nil)
	return created, nil
}

// EditProject updates a project matched by id.
func (v *View) EditProject(ctx context.Context, p Project) (Project, error) {
	if err := v.checkProject(ctx, p); err != nil {
		return Project{}, err
	}
	if v.projectIndex(p.ID) < 0 {
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, p.ID)
	}
	updated, err := v.opts.Store.UpdateProject(ctx, v.opts.Viewer, p)
	if err != nil {
		v.notify(ctx, dashboard.LevelError, "Failed to update project", err.Error())
		return Project{}, fmt.Errorf("profile: update project: %w", err)
	}
	if updated.Name == "" {
		updated = p
	}
	v.mu.Lock()
	if i := v.projectIndexLocked(p.ID); i >= 0 {
		v.projects[i] = updated
	}
	v.mu.Unlock()
	v.notify(ctx, dashboard.LevelSuccess, "Project updated", updated.Name)
	v.record(ctx, "profile.project.update", nil)
	return updated, nil
}

// DeleteProject removes a project; it stays listed when the call fails.
func (v *View) DeleteProject(ctx context.Context, id string) error {
	if v.opts.Store == nil {
		return errMissingStore
	}
	if v.projectIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err := v.opts.Store.DeleteProject(ctx, v.opts.Viewer, id); err != nil {
		v.notify(ctx, dashboard.LevelError, "Failed to delete project", err.Error())
		return fmt.Errorf("profile: delete project: %w", err)
	}
	v.mu.Lock()
	if i := v.projectIndexLocked(id); i >= 0 {
		v.projects = append(v.projects[:i], v.projects[i+1:]...)
	}
	v.mu.Unlock()
	v.notify(ctx, dashboard.LevelSuccess, "Project deleted", "")
	v.record(ctx, "profile.project.delete", nil)
	return nil
}

func (v *View) checkProject(ctx context.Context, p Project) error {
	if v.opts.Store == nil {
		return errMissingStore
	}
	if err := p.Validate(); err != nil {
		v.notify(ctx, dashboard.LevelError, "Invalid project", err.Error())
		return err
	}
	return nil
}

func (v *View) projectIndex(id string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.projectIndexLocked(id)
}

func (v *View) projectIndexLocked(id string) int {
	for i, p := range v.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (v *View) mirror(ctx context.Context, fields map[string]any) {
	if v.opts.Session == nil {
		return
	}
	if err := v.opts.Session.MergeUser(ctx, fields); err != nil {
		v.logger.Warn().Err(err).Msg("session cache update failed")
	}
}

func (v *View) notify(ctx context.Context, level dashboard.NotificationLevel, title, description string) {
	if v.opts.Notifier == nil {
		return
	}
	v.opts.Notifier.Notify(ctx, dashboard.Notification{Level: level, Title: title, Description: description})
}

func (v *View) record(ctx context.Context, event string, payload map[string]any) {
	if v.opts.Telemetry == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["user"] = v.opts.Viewer.Scope()
	v.opts.Telemetry.Record(ctx, event, payload)
}
