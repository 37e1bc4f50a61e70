package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "local.json"), filepath.Join(dir, "session.json"))
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-for-signing-only"))
	require.NoError(t, err)
	return token
}

func TestViewerWithoutSession(t *testing.T) {
	_, err := newTestSession(t).Viewer("")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPersistentStoreWins(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.scoped.Save(Document{User: map[string]any{"email": "scoped@example.com", "role": "client"}}))
	require.NoError(t, s.persistent.Save(Document{User: map[string]any{"email": "kept@example.com", "role": "Admin", "_id": "u1"}}))

	viewer, err := s.Viewer("en")
	require.NoError(t, err)
	assert.Equal(t, "kept@example.com", viewer.Email)
	assert.Equal(t, "u1", viewer.UserID)
	assert.True(t, viewer.IsAdmin())
	assert.Equal(t, "admin", viewer.RoleSegment())
	assert.Equal(t, "en", viewer.Locale)
}

func TestScopedStoreFallback(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SignIn(Document{User: map[string]any{"email": "tab@example.com"}}, false))

	viewer, err := s.Viewer("")
	require.NoError(t, err)
	assert.Equal(t, "tab@example.com", viewer.Email)
	assert.Equal(t, dashboard.RoleClient, viewer.RoleSegment())
}

func TestRoleFromTokenClaims(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "u-9", "email": "jwt@example.com", "role": "admin"})
	viewer := ViewerFromDocument(Document{Token: token}, "")
	assert.Equal(t, []string{"admin"}, viewer.Roles)
	assert.Equal(t, "u-9", viewer.UserID)
	assert.Equal(t, "jwt@example.com", viewer.Email)
	assert.Equal(t, token, viewer.Token)
}

func TestUserRoleOverridesToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"role": "admin"})
	viewer := ViewerFromDocument(Document{User: map[string]any{"roles": []any{"Client"}}, Token: token}, "")
	assert.Equal(t, []string{"client"}, viewer.Roles)
}

func TestMalformedTokenIsIgnored(t *testing.T) {
	viewer := ViewerFromDocument(Document{User: map[string]any{"email": "a@b.c"}, Token: "not-a-jwt"}, "")
	assert.Equal(t, "a@b.c", viewer.Email)
	assert.Empty(t, viewer.Roles)
}

func TestMergeUserWritesActiveStore(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SignIn(Document{User: map[string]any{"email": "me@example.com", "name": "Old"}, Token: "t"}, true))

	require.NoError(t, s.MergeUser(context.Background(), map[string]any{"name": "New", "image": "https://cdn/x.png"}))

	doc, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, "New", doc.User["name"])
	assert.Equal(t, "https://cdn/x.png", doc.User["image"])
	assert.Equal(t, "me@example.com", doc.User["email"])
	assert.Equal(t, "t", doc.Token)

	_, ok, err := s.scoped.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeUserWithoutSession(t *testing.T) {
	err := newTestSession(t).MergeUser(context.Background(), map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignOutClearsBoth(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.persistent.Save(Document{User: map[string]any{"email": "a@example.com"}}))
	require.NoError(t, s.scoped.Save(Document{User: map[string]any{"email": "b@example.com"}}))
	require.NoError(t, s.SignOut())
	_, err := s.Viewer("")
	assert.ErrorIs(t, err, ErrNoSession)
}
