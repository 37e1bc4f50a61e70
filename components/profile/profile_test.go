package profile

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeStore struct {
	profile   Profile
	projects  []Project
	saveErr   error
	uploadErr error
	deleteErr error
	uploaded  string
	saved     int
	nextID    int
}

func (f *fakeStore) FetchProfile(context.Context, dashboard.ViewerContext) (Profile, error) {
	return f.profile, nil
}

func (f *fakeStore) SaveProfile(_ context.Context, _ dashboard.ViewerContext, p Profile) (Profile, error) {
	if f.saveErr != nil {
		return Profile{}, f.saveErr
	}
	f.saved++
	f.profile = p
	return p, nil
}

func (f *fakeStore) UploadImage(_ context.Context, _ dashboard.ViewerContext, filename string, r io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, _ := io.ReadAll(r)
	f.uploaded = filename
	return "https://cdn.example.com/" + filename + "?n=" + string(rune('0'+len(data)%10)), nil
}

func (f *fakeStore) ListProjects(context.Context, dashboard.ViewerContext) ([]Project, error) {
	return f.projects, nil
}

func (f *fakeStore) CreateProject(_ context.Context, _ dashboard.ViewerContext, p Project) (Project, error) {
	f.nextID++
	p.ID = "p" + string(rune('0'+f.nextID))
	return p, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, _ dashboard.ViewerContext, p Project) (Project, error) {
	return p, nil
}

func (f *fakeStore) DeleteProject(context.Context, dashboard.ViewerContext, string) error {
	return f.deleteErr
}

type fakeSession struct {
	fields map[string]any
}

func (f *fakeSession) MergeUser(_ context.Context, fields map[string]any) error {
	if f.fields == nil {
		f.fields = map[string]any{}
	}
	for k, v := range fields {
		f.fields[k] = v
	}
	return nil
}

type notes struct{ all []dashboard.Notification }

func (n *notes) Notify(_ context.Context, note dashboard.Notification) { n.all = append(n.all, note) }

func newView(store *fakeStore, session *fakeSession, n *notes) *View {
	return NewView(Options{
		Viewer:   dashboard.ViewerContext{UserID: "u1", Email: "ana@example.com"},
		Store:    store,
		Session:  session,
		Notifier: n,
	})
}

func loadedStore() *fakeStore {
	return &fakeStore{
		profile:  Profile{Name: "Ana", Email: "ana@example.com", Location: "Monterrey"},
		projects: []Project{{ID: "p0", Name: "Cold chain audit"}},
	}
}

func TestLoad(t *testing.T) {
	view := newView(loadedStore(), nil, &notes{})
	require.NoError(t, view.Load(context.Background()))
	assert.Equal(t, "Ana", view.Profile().Name)
	assert.Len(t, view.Projects(), 1)
}

func TestSaveMirrorsSession(t *testing.T) {
	store := loadedStore()
	session := &fakeSession{}
	view := newView(store, session, &notes{})
	ctx := context.Background()
	require.NoError(t, view.Load(ctx))

	_, err := view.Save(ctx, Profile{Name: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrNotEditing)

	draft := view.Edit()
	draft.Bio = "Buyer for the north region"
	saved, err := view.Save(ctx, draft)
	require.NoError(t, err)
	assert.False(t, view.Editing())
	assert.Equal(t, "Buyer for the north region", saved.Bio)
	assert.Equal(t, "Buyer for the north region", session.fields["bio"])
	assert.Equal(t, 1, store.saved)
}

func TestSaveValidationAndFailureKeepEditMode(t *testing.T) {
	store := loadedStore()
	n := &notes{}
	view := newView(store, &fakeSession{}, n)
	ctx := context.Background()
	require.NoError(t, view.Load(ctx))

	draft := view.Edit()
	draft.Email = "not-an-email"
	_, err := view.Save(ctx, draft)
	require.Error(t, err)
	assert.True(t, view.Editing())
	assert.Equal(t, 0, store.saved)

	store.saveErr = errors.New("backend down")
	draft.Email = "ana@example.com"
	_, err = view.Save(ctx, draft)
	require.Error(t, err)
	assert.True(t, view.Editing())
	assert.Equal(t, dashboard.LevelError, n.all[len(n.all)-1].Level)
}

func TestImagePreviewThenUpload(t *testing.T) {
	store := loadedStore()
	session := &fakeSession{}
	view := newView(store, session, &notes{})
	ctx := context.Background()
	require.NoError(t, view.Load(ctx))

	uri := view.PreviewImage(pngHeader)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	assert.Equal(t, uri, view.Profile().Image)

	url, err := view.UploadImage(ctx, "avatar.png", pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/avatar.png"))
	assert.Equal(t, url, view.Profile().Image)
	assert.Equal(t, url, session.fields["image"])
}

func TestImageUploadFailureRestoresImage(t *testing.T) {
	store := loadedStore()
	store.profile.Image = "https://cdn.example.com/old.png"
	store.uploadErr = errors.New("too large")
	view := newView(store, &fakeSession{}, &notes{})
	ctx := context.Background()
	require.NoError(t, view.Load(ctx))

	_, err := view.UploadImage(ctx, "avatar.png", pngHeader)
	require.Error(t, err)
	assert.Equal(t, "https://cdn.example.com/old.png", view.Profile().Image)
}

func TestProjectCRUD(t *testing.T) {
	store := loadedStore()
	view := newView(store, nil, &notes{})
	ctx := context.Background()
	require.NoError(t, view.Load(ctx))

	_, err := view.AddProject(ctx, Project{Description: "no name"})
	require.Error(t, err)
	assert.Len(t, view.Projects(), 1)

	created, err := view.AddProject(ctx, Project{Name: "Supplier onboarding"})
	require.NoError(t, err)
	assert.Equal(t, "p1", created.ID)
	assert.Len(t, view.Projects(), 2)

	created.Description = "Vendor KYC checklist"
	_, err = view.EditProject(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Vendor KYC checklist", view.Projects()[1].Description)

	_, err = view.EditProject(ctx, Project{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrProjectNotFound)

	store.deleteErr = errors.New("locked")
	require.Error(t, view.DeleteProject(ctx, "p1"))
	assert.Len(t, view.Projects(), 2)

	store.deleteErr = nil
	require.NoError(t, view.DeleteProject(ctx, "p1"))
	assert.Len(t, view.Projects(), 1)
}
