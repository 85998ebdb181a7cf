// Package metrics holds the domain collectors of the service. HTTP request metrics live
// in the middleware package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docvault"

var (
	Ingestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ingestions_total", Help: "Document ingestions by format and outcome."},
		[]string{"format", "outcome"},
	)
	IngestionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Wall time spent converting a document into pages.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"format"},
	)
	IngestQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "ingest_queue_depth", Help: "Documents waiting for a conversion worker."},
	)
	ConversionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "conversion_failures_total", Help: "Failed external tool invocations by tool."},
		[]string{"tool"},
	)
	PagesServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "pages_served_total", Help: "Watermarked pages delivered by kind (page, preview)."},
		[]string{"kind"},
	)
	AccessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "access_decisions_total", Help: "Entitlement gate decisions (granted, no_loan, overdue)."},
		[]string{"decision"},
	)
	BorrowOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "borrow_outcomes_total", Help: "Borrow attempts by outcome."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

// RegisterCollectors registers every domain collector with reg.
func RegisterCollectors(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		Ingestions, IngestionDuration, IngestQueueDepth, ConversionFailures,
		PagesServed, AccessDecisions, BorrowOutcomes,
		RateLimitAllowed, RateLimitRejected,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
