// Package metrics registers the Prometheus collectors exported by the
// pipeline, the provider fan-out and the crawler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProviderQueryDuration observes each provider call, labeled by outcome.
	ProviderQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_provider_query_duration_seconds",
			Help:    "Duration of LLM provider queries in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"provider", "outcome"},
	)
	// ProviderFailures counts calls that produced an empty answer.
	ProviderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_provider_failures_total",
			Help: "Total number of LLM provider queries that failed, labeled by error class.",
		},
		[]string{"provider", "class"},
	)
	// BreakerState tracks each provider breaker (0 closed, 1 open, 2 half-open).
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geo_provider_breaker_state",
			Help: "Circuit breaker state per provider: 0 closed, 1 open, 2 half-open.",
		},
		[]string{"provider"},
	)
	// StageDuration observes each pipeline stage.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_pipeline_stage_duration_seconds",
			Help:    "Duration of analysis pipeline stages in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"stage"},
	)
	// Runs counts finished analyses by final status.
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_pipeline_runs_total",
			Help: "Total number of analysis runs, labeled by final status.",
		},
		[]string{"status"},
	)
	// VisibilityScore observes the overall score of completed analyses.
	VisibilityScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geo_visibility_score",
			Help:    "Overall visibility score of completed analyses.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	// PagesCrawled counts pages returned by the crawler, labeled by source.
	PagesCrawled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_crawl_pages_total",
			Help: "Total number of crawled pages, labeled by source.",
		},
		[]string{"source"},
	)
	// QueueMessages counts worker queue messages by outcome.
	QueueMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_queue_messages_total",
			Help: "Total number of queue messages handled by the worker, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ProviderQueryDuration)
	prometheus.MustRegister(ProviderFailures)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(Runs)
	prometheus.MustRegister(VisibilityScore)
	prometheus.MustRegister(PagesCrawled)
	prometheus.MustRegister(QueueMessages)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
