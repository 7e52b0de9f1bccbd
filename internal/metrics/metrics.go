// Package metrics exposes Prometheus counters for ingest, publish and
// connect outcomes. A Metrics value is both a session.Observer and a
// relay.Observer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/nostrcal/internal/record"
	"github.com/roach88/nostrcal/internal/relay"
)

// Metrics holds the client's counters.
type Metrics struct {
	reg *prometheus.Registry

	ingested      *prometheus.CounterVec
	duplicates    prometheus.Counter
	malformed     *prometheus.CounterVec
	published     *prometheus.CounterVec
	connectFailed *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nostrcal_events_ingested_total",
			Help: "Events applied to the session, by kind",
		}, []string{"kind"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "nostrcal_events_duplicate_total",
			Help: "Events dropped because their id was already seen",
		}),
		malformed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nostrcal_events_malformed_total",
			Help: "Events dropped because they failed to decode, by kind",
		}, []string{"kind"}),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nostrcal_publish_results_total",
			Help: "Per-relay publish outcomes",
		}, []string{"relay", "outcome"}),
		connectFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nostrcal_relay_connect_failures_total",
			Help: "Relay connection attempts that failed",
		}, []string{"relay"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nostrcal_refreshes_total",
			Help: "Scheduled relay re-queries, by result",
		}, []string{"result"}),
	}
}

// Registry returns the registry the counters live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Ingested(kind int) {
	m.ingested.WithLabelValues(record.KindName(kind)).Inc()
}

func (m *Metrics) Duplicate() {
	m.duplicates.Inc()
}

func (m *Metrics) Malformed(kind int) {
	m.malformed.WithLabelValues(record.KindName(kind)).Inc()
}

func (m *Metrics) ConnectFailed(url string) {
	m.connectFailed.WithLabelValues(url).Inc()
}

func (m *Metrics) PublishResult(url string, outcome relay.Outcome) {
	m.published.WithLabelValues(url, outcome.String()).Inc()
}

// Refreshed counts one scheduled refresh.
func (m *Metrics) Refreshed(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
}
