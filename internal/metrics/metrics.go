// Package metrics provides Prometheus metrics collection for the transit
// delay prediction service. It defines counters, gauges, and histograms
// covering data collection, feature engineering, and model activity, all
// exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Data collection metrics
	EventsFetched prometheus.Counter   // Total number of transit events fetched from the API
	EventsStored  prometheus.Counter   // Total number of transit events written to the archive
	FetchErrors   prometheus.Counter   // Total number of failed fetch attempts
	FetchDuration prometheus.Histogram // Duration of fetch cycles

	// Feature engineering metrics
	FeatureRows   prometheus.Counter // Total number of feature rows produced
	FeatureErrors prometheus.Counter // Total number of feature engineering errors

	// Model metrics
	Predictions        prometheus.Counter   // Total number of delay predictions made
	PredictionFailures prometheus.Counter   // Total number of prediction failures
	TrainingDuration   prometheus.Histogram // Duration of model training runs
	ModelAge           prometheus.Gauge     // Age of the current model in seconds

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
// This is the standard way to create metrics for production use.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		EventsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "transit_events_fetched_total",
			Help: "Total number of transit events fetched from the API",
		}),
		EventsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "transit_events_stored_total",
			Help: "Total number of transit events written to the archive",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "transit_fetch_errors_total",
			Help: "Total number of failed fetch attempts",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transit_fetch_duration_seconds",
			Help:    "Duration of fetch cycles in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		FeatureRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_rows_total",
			Help: "Total number of feature rows produced",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature engineering errors",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "delay_predictions_total",
			Help: "Total number of delay predictions made",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "delay_prediction_failures_total",
			Help: "Total number of prediction failures",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "model_training_duration_seconds",
			Help:    "Duration of model training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the current model in seconds",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
