// Package metrics exposes the prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DraftsOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonotify_drafts_opened_total",
		Help: "Total number of authoring sessions opened",
	}, []string{"origin"})
	DraftsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geonotify_drafts_expired_total",
		Help: "Total number of idle authoring sessions torn down",
	})
	ActiveDrafts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geonotify_active_drafts",
		Help: "Number of live authoring sessions",
	})
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonotify_submissions_total",
		Help: "Total notification submissions by outcome",
	}, []string{"outcome"})
	MalformedGeometryTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geonotify_malformed_geometry_total",
		Help: "Total malformed geometries downgraded to an empty geofence",
	})
	DrawEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonotify_draw_events_total",
		Help: "Total draw gestures applied by kind",
	}, []string{"kind"})
	UpstreamDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geonotify_upstream_duration_ms",
		Help:    "Upstream REST call duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	}, []string{"method"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonotify_cache_hits_total",
		Help: "Total redis cache hits by resource",
	}, []string{"resource"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonotify_cache_misses_total",
		Help: "Total redis cache misses by resource",
	}, []string{"resource"})
)

func init() {
	prometheus.MustRegister(DraftsOpenedTotal)
	prometheus.MustRegister(DraftsExpiredTotal)
	prometheus.MustRegister(ActiveDrafts)
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(MalformedGeometryTotal)
	prometheus.MustRegister(DrawEventsTotal)
	prometheus.MustRegister(UpstreamDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler returns the prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }
