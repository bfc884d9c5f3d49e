// Package metrics exposes Prometheus counters for the spawn
// coordinator, reservoir, and manifest enrichment pipeline (spec §4.7
// "Aggregate statistics: cumulative spawned, errors, per-spawner counts").
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every counter the engine updates, registered
// against its own prometheus.Registry rather than the global default so
// tests can build throwaway instances freely.
type Registry struct {
	reg *prometheus.Registry

	SpawnedTotal        *prometheus.CounterVec
	SpawnErrorsTotal    *prometheus.CounterVec
	ReservoirFailures   prometheus.Counter
	ReservoirPersisted  prometheus.Counter
	ManifestGeocodeCalls prometheus.Counter
	JanitorExpiredTotal prometheus.Counter
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		SpawnedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transitspawn",
			Name:      "spawned_total",
			Help:      "Passengers materialized per spawner.",
		}, []string{"spawner"}),
		SpawnErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transitspawn",
			Name:      "spawn_errors_total",
			Help:      "Spawn cycle failures per spawner.",
		}, []string{"spawner"}),
		ReservoirFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transitspawn",
			Name:      "reservoir_failures_total",
			Help:      "Passenger writes the reservoir failed to persist.",
		}),
		ReservoirPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transitspawn",
			Name:      "reservoir_persisted_total",
			Help:      "Passenger writes the reservoir persisted.",
		}),
		ManifestGeocodeCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transitspawn",
			Name:      "manifest_geocode_calls_total",
			Help:      "Reverse-geocode calls issued during manifest enrichment.",
		}),
		JanitorExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transitspawn",
			Name:      "janitor_expired_passengers_total",
			Help:      "Expired passengers pruned by the janitor.",
		}),
	}
	reg.MustRegister(
		r.SpawnedTotal, r.SpawnErrorsTotal, r.ReservoirFailures,
		r.ReservoirPersisted, r.ManifestGeocodeCalls, r.JanitorExpiredTotal,
	)
	return r
}

// Handler exposes the registry at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
