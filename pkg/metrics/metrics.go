// Package metrics provides Prometheus metrics for the value provider.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcome labels.
const (
	OutcomePriced  = "priced"
	OutcomeNoPrice = "no_price"
)

var (
	// ResolutionsTotal is a counter of feed price resolutions by outcome.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_resolutions_total",
			Help: "Total number of feed price resolutions",
		},
		[]string{"feed", "outcome"},
	)

	// ResolutionDuration is a histogram of feed resolution duration.
	ResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_resolution_duration_seconds",
			Help:    "Duration of feed price resolutions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	// StaleObservationsTotal is a counter of observations skipped as stale.
	StaleObservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stale_observations_total",
			Help: "Total number of observations skipped because they exceeded the max age",
		},
		[]string{"exchange"},
	)

	// OutlierRejectionsTotal is a counter of rejected outlier prices.
	OutlierRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlier_rejections_total",
			Help: "Total number of outlier prices rejected",
		},
		[]string{"feed"},
	)

	// ConversionsTotal is a counter of USDT to USD quote conversions.
	ConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usdt_conversions_total",
			Help: "Total number of USDT-quoted prices converted to USD",
		},
		[]string{"exchange"},
	)

	// ZeroWeightFallbacksTotal is a counter of weighted-average fallbacks.
	ZeroWeightFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zero_weight_fallbacks_total",
			Help: "Total number of weighted averages that fell back to the simple mean",
		},
		[]string{"feed"},
	)
)

// Init registers all metrics with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(
		ResolutionsTotal,
		ResolutionDuration,
		StaleObservationsTotal,
		OutlierRejectionsTotal,
		ConversionsTotal,
		ZeroWeightFallbacksTotal,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address and path.
func ServeHTTP(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordResolution records one feed price resolution.
func RecordResolution(feed, outcome string, duration time.Duration) {
	ResolutionsTotal.WithLabelValues(feed, outcome).Inc()
	ResolutionDuration.WithLabelValues(feed).Observe(duration.Seconds())
}

// RecordStaleObservation records an observation skipped as stale.
func RecordStaleObservation(exchange string) {
	StaleObservationsTotal.WithLabelValues(exchange).Inc()
}

// RecordOutlierRejection records an outlier rejection.
func RecordOutlierRejection(feed string) {
	OutlierRejectionsTotal.WithLabelValues(feed).Inc()
}

// RecordConversion records a USDT to USD conversion.
func RecordConversion(exchange string) {
	ConversionsTotal.WithLabelValues(exchange).Inc()
}

// RecordZeroWeightFallback records a fallback to the unweighted mean.
func RecordZeroWeightFallback(feed string) {
	ZeroWeightFallbacksTotal.WithLabelValues(feed).Inc()
}
