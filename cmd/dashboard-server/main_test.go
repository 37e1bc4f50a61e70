package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-supply-dashboard/components/dashboard"
	"github.com/goliatone/go-supply-dashboard/components/messaging"
	"github.com/goliatone/go-supply-dashboard/components/profile"
	"github.com/goliatone/go-supply-dashboard/components/tablebuilder"
	"github.com/goliatone/go-supply-dashboard/pkg/config"
	dashboardpkg "github.com/goliatone/go-supply-dashboard/pkg/dashboard"
)

func newTestApp(t *testing.T, backend http.HandlerFunc) *dashboardpkg.App {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	app, err := dashboardpkg.New(dashboardpkg.Options{Config: config.Config{
		API:     config.API{BaseURL: srv.URL},
		Server:  config.Server{Address: ":0", BasePath: "/dashboard"},
		Session: config.Session{Dir: dir, PersistentFile: "local.json", SessionFile: "session.json"},
		Metrics: config.Metrics{Enabled: true, Path: "/metrics"},
	}})
	require.NoError(t, err)
	return app
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-for-signing-only"))
	require.NoError(t, err)
	return token
}

func TestBearer(t *testing.T) {
	assert.Equal(t, "abc", bearer("Bearer abc"))
	assert.Equal(t, "", bearer("Bearer "))
	assert.Equal(t, "", bearer("Basic abc"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("wrap: %w", tablebuilder.ErrSchemaNotFound)))
	assert.Equal(t, http.StatusNotFound, statusFor(profile.ErrProjectNotFound))
	assert.Equal(t, http.StatusForbidden, statusFor(tablebuilder.ErrForbidden))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(tablebuilder.ErrNoColumns))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(validation.Errors{"name": validation.ErrRequired}))
	assert.Equal(t, http.StatusNotFound, statusFor(dashboard.ErrUnknownEntity))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func TestHubMuxServesMetricsAndOnline(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(hubMux(app, messaging.NewHub(nil)))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")

	res, err = http.Get(srv.URL + "/online")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `"users"`)
}

func TestHubMuxExportsWithBearerViewer(t *testing.T) {
	emails := make(chan string, 4)
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/table-headers/"):
			select {
			case emails <- r.URL.Query().Get("email"):
			default:
			}
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/api/suppliers/get-data":
			_, _ = io.WriteString(w, `[{"_id":"s1","supplierName":"Acme","materialCategory":"Steel"}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})
	srv := httptest.NewServer(hubMux(app, messaging.NewHub(nil)))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/tables/suppliers/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"sub": "u-1", "email": "ops@example.com", "role": "Admin"}))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, "text/csv; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "Acme")
	assert.Equal(t, "ops@example.com", <-emails)
}

func TestRequestViewerFallsBackToLocale(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodGet, "/api/refresh", nil)
	req.Header.Set("Accept-Language", "es-MX;q=0.9, en;q=0.8")

	viewer := requestViewer(app)(req)
	assert.Equal(t, "es-mx", viewer.Locale)
	assert.Empty(t, viewer.Scope())
}
