package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "provider_requests_total",
			Help:      "Total LLM provider requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medextract",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of LLM provider requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	extractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medextract",
			Name:      "extraction_duration_seconds",
			Help:      "Duration of text extraction by file kind and method",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind", "method"},
	)

	ocrPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "ocr_pages_total",
			Help:      "Total pages routed through OCR",
		},
	)

	documentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "documents_processed_total",
			Help:      "Documents processed by result (success, unsupported, insufficient_text, provider_failed, invalid_output)",
		},
		[]string{"result"},
	)

	validationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "validation_outcomes_total",
			Help:      "Schema validation outcomes (clean, errors, warnings_only)",
		},
		[]string{"outcome"},
	)

	refinements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medextract",
			Name:      "refinements_total",
			Help:      "Refinement attempts by result (resolved, unresolved, failed)",
		},
		[]string{"result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(providerReqs, providerLatency, extractionDuration, ocrPages, documentsProcessed, validationOutcomes, refinements)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(provider, model, result string, dur time.Duration) {
	providerReqs.WithLabelValues(provider, model, result).Inc()
	providerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func ObserveExtraction(kind, method string, dur time.Duration) {
	extractionDuration.WithLabelValues(kind, method).Observe(dur.Seconds())
}

func AddOCRPages(n int) { ocrPages.Add(float64(n)) }

func IncProcessed(result string)   { documentsProcessed.WithLabelValues(result).Inc() }
func IncValidation(outcome string) { validationOutcomes.WithLabelValues(outcome).Inc() }
func IncRefinement(result string)  { refinements.WithLabelValues(result).Inc() }
