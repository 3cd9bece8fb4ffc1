// Package metrics exposes Prometheus instrumentation for the needs server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the needs server.
type Metrics struct {
	PlayersConnected prometheus.Gauge
	DecayTicksTotal  prometheus.Counter
	SavesTotal       prometheus.Counter
	SaveErrorsTotal  prometheus.Counter
	LocationUses     *prometheus.CounterVec
	SnapshotsPushed  prometheus.Counter
}

// New creates and registers the server's metric collectors.
func New() *Metrics {
	m := &Metrics{
		PlayersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsn_needs_players_connected",
			Help: "Number of players with an active needs session.",
		}),
		DecayTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsn_needs_decay_ticks_total",
			Help: "Total decay ticks processed since server start.",
		}),
		SavesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsn_needs_saves_total",
			Help: "Total snapshot writes to the relational store.",
		}),
		SaveErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsn_needs_save_errors_total",
			Help: "Snapshot writes that failed.",
		}),
		LocationUses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsn_needs_location_uses_total",
			Help: "Location interaction attempts by need and outcome.",
		}, []string{"need", "outcome"}),
		SnapshotsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsn_needs_snapshots_pushed_total",
			Help: "Need snapshots pushed to clients.",
		}),
	}

	prometheus.MustRegister(
		m.PlayersConnected,
		m.DecayTicksTotal,
		m.SavesTotal,
		m.SaveErrorsTotal,
		m.LocationUses,
		m.SnapshotsPushed,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
