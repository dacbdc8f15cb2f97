package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: status={succeeded,failed}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastRunSuccess  prometheus.Gauge

	// Acquisition metrics.
	LocationsFetched prometheus.Counter
	FetchFailures    prometheus.Counter

	// Transform and quality metrics.
	FactsTransformed prometheus.Counter
	TransformErrors  prometheus.Counter
	FactsApproved    prometheus.Counter
	FactsRejected    prometheus.Counter
	RejectionRules   *prometheus.CounterVec // labels: rule={required_field,range,duplicate_id}

	// Persistence metrics.
	StepFailures   *prometheus.CounterVec   // labels: step
	StepDuration   *prometheus.HistogramVec // labels: step
	HistoricalRows prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-transform-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "pipeline_running",
			Help:      "1 while a run is in flight, 0 otherwise.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "last_run_success",
			Help:      "1 if the most recent run succeeded, 0 if it failed.",
		}),
		LocationsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "locations_fetched_total",
			Help:      "Total locations fetched successfully from the weather API.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "fetch_failures_total",
			Help:      "Total locations that failed to fetch after retries.",
		}),
		FactsTransformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "facts_transformed_total",
			Help:      "Total observations transformed into weather facts.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "transform_errors_total",
			Help:      "Total transformation failures.",
		}),
		FactsApproved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "facts_approved_total",
			Help:      "Total facts that passed the quality gate.",
		}),
		FactsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "facts_rejected_total",
			Help:      "Total facts rejected by the quality gate.",
		}),
		RejectionRules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "rejection_rules_total",
			Help:      "Quality gate rejections by rule.",
		}, []string{"rule"}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "step_failures_total",
			Help:      "Persistence step failures by step.",
		}, []string{"step"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "step_duration_seconds",
			Help:      "Duration of each persistence step.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"step"}),
		HistoricalRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "historical_rows",
			Help:      "Row count of the historical dataset after the last merge.",
		}),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.LastRunSuccess,
		m.LocationsFetched,
		m.FetchFailures,
		m.FactsTransformed,
		m.TransformErrors,
		m.FactsApproved,
		m.FactsRejected,
		m.RejectionRules,
		m.StepFailures,
		m.StepDuration,
		m.HistoricalRows,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsTotal:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "weather_etl", Name: "runs_total"}, []string{"status"}),
		RunDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "weather_etl", Name: "run_duration_seconds"}),
		PipelineRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "weather_etl", Name: "pipeline_running"}),
		LastRunSuccess:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "weather_etl", Name: "last_run_success"}),
		LocationsFetched: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "locations_fetched_total"}),
		FetchFailures:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "fetch_failures_total"}),
		FactsTransformed: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "facts_transformed_total"}),
		TransformErrors:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "transform_errors_total"}),
		FactsApproved:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "facts_approved_total"}),
		FactsRejected:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_etl", Name: "facts_rejected_total"}),
		RejectionRules:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "weather_etl", Name: "rejection_rules_total"}, []string{"rule"}),
		StepFailures:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "weather_etl", Name: "step_failures_total"}, []string{"step"}),
		StepDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "weather_etl", Name: "step_duration_seconds"}, []string{"step"}),
		HistoricalRows:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "weather_etl", Name: "historical_rows"}),
	}
}
