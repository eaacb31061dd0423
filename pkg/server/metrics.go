package server

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crosstab_analyses_total",
			Help: "Total number of cross-tabulation analyses served.",
		},
	)

	analysisErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crosstab_analysis_errors_total",
			Help: "Total number of analysis requests that returned an error.",
		},
	)

	analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crosstab_analysis_duration_seconds",
			Help:    "Wall-clock duration of analysis requests.",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crosstab_cache_hits_total",
			Help: "Total number of analyses answered from the result cache.",
		},
	)

	registered uint32
)

// RegisterMetrics registers and exposes Prometheus metrics on /metrics.
func RegisterMetrics(mux *http.ServeMux) {
	if atomic.CompareAndSwapUint32(&registered, 0, 1) {
		prometheus.MustRegister(analysesTotal, analysisErrorsTotal, analysisDuration, cacheHitsTotal)
	}
	mux.Handle("/metrics", promhttp.Handler())
}
