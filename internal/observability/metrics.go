// Package observability provides Prometheus metrics for monitoring. Metrics
// are advisory instrumentation and never alter simulation outcomes.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	TicksProcessed  prometheus.Counter
	BarsResampled   prometheus.Counter
	BarsStored      prometheus.Counter
	IngestionErrors *prometheus.CounterVec

	// Detection metrics
	SignalsDetected *prometheus.CounterVec

	// Simulation metrics
	EntriesRejected *prometheus.CounterVec
	TradesSimulated *prometheus.CounterVec

	// Backtest run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "shockflip_lab"
	}

	return &Metrics{
		// Ingestion metrics
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_processed_total",
			Help:      "Total number of ticks processed",
		}),
		BarsResampled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_resampled_total",
			Help:      "Total number of bars produced by the resampler",
		}),
		BarsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_stored_total",
			Help:      "Total number of bars stored to the database",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by type",
		}, []string{"error_type"}),

		// Detection metrics
		SignalsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "signals_total",
			Help:      "Total number of detected signals by side",
		}, []string{"side"}),

		// Simulation metrics
		EntriesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "entries_rejected_total",
			Help:      "Total number of candidate entries rejected by gate",
		}, []string{"reason"}),
		TradesSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of trades simulated by result",
		}, []string{"result"}),

		// Backtest run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTickProcessed increments the ticks processed counter.
func RecordTickProcessed() {
	DefaultMetrics.TicksProcessed.Inc()
}

// RecordBarsResampled adds to the bars resampled counter.
func RecordBarsResampled(n int) {
	DefaultMetrics.BarsResampled.Add(float64(n))
}

// RecordBarsStored adds to the bars stored counter.
func RecordBarsStored(n int) {
	DefaultMetrics.BarsStored.Add(float64(n))
}

// RecordIngestionError records an ingestion error.
func RecordIngestionError(errorType string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(errorType).Inc()
}

// RecordSignal increments the detected signal counter for a side.
func RecordSignal(side int) {
	label := "long"
	if side < 0 {
		label = "short"
	}
	DefaultMetrics.SignalsDetected.WithLabelValues(label).Inc()
}

// RecordEntryRejected records a rejected candidate entry.
func RecordEntryRejected(reason string) {
	DefaultMetrics.EntriesRejected.WithLabelValues(reason).Inc()
}

// RecordTradeSimulated records a finalized trade.
func RecordTradeSimulated(result string) {
	DefaultMetrics.TradesSimulated.WithLabelValues(result).Inc()
}

// RecordRun records a completed backtest run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
