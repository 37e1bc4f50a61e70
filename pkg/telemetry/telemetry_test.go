package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCountsByEntity(t *testing.T) {
	p := NewPrometheus("test")
	ctx := context.Background()
	p.Record(ctx, "dashboard.row.create", map[string]any{"entity": "suppliers"})
	p.Record(ctx, "dashboard.row.create", map[string]any{"entity": "suppliers"})
	p.Record(ctx, "dashboard.summary.load", map[string]any{"entities": 6, "failed": 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(p.events.WithLabelValues("dashboard.row.create", "suppliers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.events.WithLabelValues("dashboard.summary.load", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.failed.WithLabelValues("dashboard.summary.load")))
}

func TestHandlerExposesCounters(t *testing.T) {
	p := NewPrometheus("test")
	reg := NewRegistry(p.Collectors()...)
	p.Record(context.Background(), "tablebuilder.schema.create", nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_events_total{entity="",event="tablebuilder.schema.create"} 1`)
}

func TestMultiFansOutToLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	p := NewPrometheus("multi")
	Multi{p, NewLog(logger), nil}.Record(context.Background(), "dashboard.columns.save", map[string]any{"entity": "customer-orders", "scope": "global"})

	out := buf.String()
	assert.True(t, strings.Contains(out, `"event":"dashboard.columns.save"`), out)
	assert.True(t, strings.Contains(out, `"scope":"global"`), out)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.events.WithLabelValues("dashboard.columns.save", "customer-orders")))
}
