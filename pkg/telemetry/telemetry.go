// Package telemetry records dashboard events as prometheus counters and log lines.
package telemetry

import (
	"context"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Recorder matches the Record signature every component accepts.
type Recorder interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

// Prometheus counts events by name and entity.
type Prometheus struct {
	events *prometheus.CounterVec
	failed *prometheus.CounterVec
}

// NewPrometheus builds the collectors. Register them with Collectors.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "supply_dashboard"
	}
	return &Prometheus{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Dashboard events by name and entity.",
		}, []string{"event", "entity"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_failed_slices_total",
			Help:      "Summary slices that failed to load.",
		}, []string{"event"}),
	}
}

func (p *Prometheus) Record(_ context.Context, event string, payload map[string]any) {
	entity, _ := payload["entity"].(string)
	p.events.WithLabelValues(event, entity).Inc()
	if n, ok := payload["failed"].(int); ok && n > 0 {
		p.failed.WithLabelValues(event).Add(float64(n))
	}
}

// Collectors returns the collectors to register.
func (p *Prometheus) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.events, p.failed}
}

// Log writes each event at debug level with its payload as fields.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Record(_ context.Context, event string, payload map[string]any) {
	ev := l.logger.Debug().Str("event", event)
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev = ev.Interface(k, payload[k])
	}
	ev.Msg("telemetry")
}

// Multi fans out to every non-nil recorder.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, event string, payload map[string]any) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, event, payload)
		}
	}
}

// NewRegistry registers the go collector plus cols on a fresh registry.
func NewRegistry(cols ...prometheus.Collector) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(prometheus.NewGoCollector())
	r.MustRegister(cols...)
	return r
}

// Handler serves the registry in the prometheus exposition format.
func Handler(r *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(r, promhttp.HandlerOpts{})
}
