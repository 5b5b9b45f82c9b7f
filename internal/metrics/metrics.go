// Package metrics exposes Prometheus collectors for the harvest pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingsFetchedTotal      *prometheus.CounterVec
	listingsDedupedTotal      prometheus.Counter
	extractionsTotal          *prometheus.CounterVec
	gateVerdictsTotal         *prometheus.CounterVec
	factsLoadedTotal          prometheus.Counter
	notificationsSentTotal    prometheus.Counter
	pipelineErrorsTotal       *prometheus.CounterVec
	sourceFetchDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		listingsFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_listings_fetched_total",
				Help: "Total raw listings fetched, labeled by source.",
			},
			[]string{"source"},
		)

		listingsDedupedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_listings_deduped_total",
				Help: "Total listings dropped as in-run duplicates.",
			},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_extractions_total",
				Help: "Total extraction outcomes, labeled by status.",
			},
			[]string{"status"},
		)

		gateVerdictsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_gate_verdicts_total",
				Help: "Total quality gate verdicts, labeled by outcome and reason.",
			},
			[]string{"outcome", "reason"},
		)

		factsLoadedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_facts_loaded_total",
				Help: "Total fact rows appended to the warehouse.",
			},
		)

		notificationsSentTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_notifications_sent_total",
				Help: "Total notifications delivered.",
			},
		)

		pipelineErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pipeline_errors_total",
				Help: "Total per-item pipeline errors, labeled by stage.",
			},
			[]string{"stage"},
		)

		sourceFetchDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_source_fetch_duration_seconds",
				Help:    "Histogram of full adapter fetch durations, labeled by source.",
				Buckets: []float64{0.5, 1, 5, 15, 60, 180, 600},
			},
			[]string{"source"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetched adds fetched listings for one source.
func ObserveFetched(source string, count int) {
	listingsFetchedTotal.WithLabelValues(source).Add(float64(count))
}

// ObserveDeduped adds in-run duplicate drops.
func ObserveDeduped(count int) {
	listingsDedupedTotal.Add(float64(count))
}

// ObserveExtraction increments the extraction counter for the given status.
func ObserveExtraction(status string) {
	extractionsTotal.WithLabelValues(status).Inc()
}

// ObserveVerdict increments the gate verdict counter.
func ObserveVerdict(accepted bool, reason string) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	if reason == "" {
		reason = "none"
	}
	gateVerdictsTotal.WithLabelValues(outcome, reason).Inc()
}

// ObserveFactLoaded increments the loaded fact counter.
func ObserveFactLoaded() {
	factsLoadedTotal.Inc()
}

// ObserveNotificationSent increments the notification counter.
func ObserveNotificationSent() {
	notificationsSentTotal.Inc()
}

// ObserveError increments the per-item error counter for a stage.
func ObserveError(stage string) {
	pipelineErrorsTotal.WithLabelValues(stage).Inc()
}

// ObserveFetchDuration records a full adapter fetch duration.
func ObserveFetchDuration(source string, duration time.Duration) {
	sourceFetchDurationSecond.WithLabelValues(source).Observe(duration.Seconds())
}
