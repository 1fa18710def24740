// Package metrics defines the Prometheus instruments for the scrape pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "Total pipeline items handled, labeled by phase and outcome.",
		},
		[]string{"phase", "status"},
	)

	scraperRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total retry attempts after transient failures, labeled by phase.",
		},
		[]string{"phase"},
	)

	scraperValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_validation_failures_total",
			Help: "Extracted pages rejected by validation, labeled by locale.",
		},
		[]string{"locale"},
	)

	scraperActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_active_workers",
			Help: "Number of pool workers currently processing an item.",
		},
	)
)

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem records one handled item for a phase with its outcome.
func ObserveItem(phase, status string) {
	scraperItemsTotal.WithLabelValues(phase, status).Inc()
}

// ObserveRetry records one retry attempt for a phase.
func ObserveRetry(phase string) {
	scraperRetriesTotal.WithLabelValues(phase).Inc()
}

// ObserveValidationFailure records one page rejected by validation.
func ObserveValidationFailure(locale string) {
	scraperValidationFailuresTotal.WithLabelValues(locale).Inc()
}

// IncActiveWorkers marks a worker as busy.
func IncActiveWorkers() {
	scraperActiveWorkers.Inc()
}

// DecActiveWorkers marks a worker as idle.
func DecActiveWorkers() {
	scraperActiveWorkers.Dec()
}
