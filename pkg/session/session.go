// Package session reads the signed-in identity from the two on-device stores
// and turns it into the read-only viewer every view is built with.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/profile"
)

var (
	// ErrNoSession means neither store holds a signed-in user.
	ErrNoSession = errors.New("session: no signed-in user")

	_ profile.SessionCache = (*Session)(nil)
)

// Document is the stored session shape.
type Document struct {
	User  map[string]any `json:"user"`
	Token string         `json:"token,omitempty"`
}

func (d Document) empty() bool {
	return len(d.User) == 0 && d.Token == ""
}

// FileStore keeps one Document as a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load returns the stored document. A missing file is not an error.
func (s *FileStore) Load() (Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() (Document, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, false, fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	return doc, !doc.empty(), nil
}

// Save replaces the document, writing through a temp file.
func (s *FileStore) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

func (s *FileStore) save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: replace %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: clear %s: %w", s.path, err)
	}
	return nil
}

// Session resolves identity from the persistent store first, then the scoped one.
type Session struct {
	persistent *FileStore
	scoped     *FileStore
}

func New(persistentPath, scopedPath string) *Session {
	return &Session{
		persistent: NewFileStore(persistentPath),
		scoped:     NewFileStore(scopedPath),
	}
}

// SignIn stores doc in the persistent store when remember is set, otherwise in the scoped one.
func (s *Session) SignIn(doc Document, remember bool) error {
	if remember {
		if err := s.scoped.Clear(); err != nil {
			return err
		}
		return s.persistent.Save(doc)
	}
	return s.scoped.Save(doc)
}

// SignOut clears both stores.
func (s *Session) SignOut() error {
	return errors.Join(s.persistent.Clear(), s.scoped.Clear())
}

func (s *Session) active() (*FileStore, Document, error) {
	for _, store := range []*FileStore{s.persistent, s.scoped} {
		doc, ok, err := store.Load()
		if err != nil {
			return nil, Document{}, err
		}
		if ok {
			return store, doc, nil
		}
	}
	return nil, Document{}, ErrNoSession
}

// Document returns the active stored document.
func (s *Session) Document() (Document, error) {
	_, doc, err := s.active()
	return doc, err
}

// Viewer builds the identity value injected into views.
func (s *Session) Viewer(locale string) (dashboard.ViewerContext, error) {
	_, doc, err := s.active()
	if err != nil {
		return dashboard.ViewerContext{}, err
	}
	return ViewerFromDocument(doc, locale), nil
}

// MergeUser copies fields into the stored user record of the active store.
func (s *Session) MergeUser(_ context.Context, fields map[string]any) error {
	store, _, err := s.active()
	if err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	doc, _, err := store.load()
	if err != nil {
		return err
	}
	if doc.User == nil {
		doc.User = map[string]any{}
	}
	for k, v := range fields {
		doc.User[k] = v
	}
	return store.save(doc)
}

// ViewerFromDocument maps the stored user and token onto a viewer. The role
// comes from the user record, falling back to the token's claims.
func ViewerFromDocument(doc Document, locale string) dashboard.ViewerContext {
	viewer := dashboard.ViewerContext{
		UserID: stringField(doc.User, "_id", "id", "userId"),
		Email:  stringField(doc.User, "email"),
		Name:   stringField(doc.User, "name", "username"),
		Roles:  rolesOf(doc.User),
		Token:  doc.Token,
		Locale: locale,
	}
	if doc.Token == "" {
		return viewer
	}
	claims, err := TokenClaims(doc.Token)
	if err != nil {
		return viewer
	}
	if len(viewer.Roles) == 0 {
		viewer.Roles = rolesOf(claims)
	}
	if viewer.Email == "" {
		viewer.Email = stringField(claims, "email")
	}
	if viewer.UserID == "" {
		viewer.UserID = stringField(claims, "sub", "id", "userId")
	}
	return viewer
}

// TokenClaims decodes the token payload without verifying the signature. The
// backend verifies tokens; the dashboard only reads the role for routing.
func TokenClaims(token string) (map[string]any, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("session: parse token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("session: unexpected claims type")
	}
	return claims, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func rolesOf(m map[string]any) []string {
	if role := stringField(m, "role"); role != "" {
		return []string{strings.ToLower(role)}
	}
	raw, ok := m["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok && s != "" {
			roles = append(roles, strings.ToLower(s))
		}
	}
	return roles
}
