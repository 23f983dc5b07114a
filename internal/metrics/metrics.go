// Package metrics holds the Prometheus collectors of the catalog service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "odc"
	subsystem = "catalog"
)

var (
	ParseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "parse_duration_seconds",
			Help:      "Time taken to parse one device description",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"format"},
	)

	ParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "parse_failures_total",
			Help:      "Documents rejected by a fatal parse error",
		},
		[]string{"format"},
	)

	ParseWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "parse_warnings_total",
			Help:      "Data-quality warnings reported while parsing",
		},
		[]string{"format"},
	)

	ParseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "parse_cache_hits_total",
			Help:      "Uploads served from the parse cache",
		},
	)

	RejectedUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_uploads_total",
			Help:      "Uploads rejected before parsing",
		},
		[]string{"reason"},
	)

	DevicesImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "devices_imported_total",
			Help:      "Devices stored after a successful import",
		},
		[]string{"format"},
	)

	DevicesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "devices_deleted_total",
			Help:      "Devices deleted",
		},
	)

	SchemaCompositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "schema_compositions_total",
			Help:      "Config schema requests by cache outcome",
		},
		[]string{"cache"},
	)

	UnresolvedReferences = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "schema_unresolved_references_total",
			Help:      "Menu references left unresolved while composing schemas",
		},
	)
)

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
