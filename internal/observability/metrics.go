// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crypto-series-engine/internal/storage/postgres"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	PointsAppended     prometheus.Counter
	BatchesIngested    prometheus.Counter
	BatchesRejected    *prometheus.CounterVec
	HistoricalRejected prometheus.Counter

	// Query metrics
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// Maintenance metrics
	MaintenanceRuns     *prometheus.CounterVec
	MaintenanceDuration *prometheus.HistogramVec
	ChunksCompressed    prometheus.Counter
	ChunksDropped       prometheus.Counter

	// Pool metrics
	PoolConnects  prometheus.Counter
	PoolAcquires  prometheus.Counter
	PoolReleases  prometheus.Counter
	PoolExhausted prometheus.Counter
	PoolConns     *prometheus.GaugeVec

	// Health metrics
	LastSuccessfulIngestion  prometheus.Gauge
	LastSuccessfulMaintWatch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_series_engine"
	}

	return &Metrics{
		PointsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "points_appended_total",
			Help:      "Total number of price points appended",
		}),
		BatchesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batches_ingested_total",
			Help:      "Total number of bulk batches committed",
		}),
		BatchesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batches_rejected_total",
			Help:      "Total number of bulk batches rejected by reason",
		}, []string{"reason"}),
		HistoricalRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "historical_writes_rejected_total",
			Help:      "Total number of writes rejected for targeting retired history",
		}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Total number of query errors",
		}, []string{"operation"}),

		MaintenanceRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "runs_total",
			Help:      "Total number of maintenance runs by job and status",
		}, []string{"job", "status"}),
		MaintenanceDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "duration_seconds",
			Help:      "Maintenance run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		ChunksCompressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "chunks_compressed_total",
			Help:      "Total number of chunks compressed",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "chunks_dropped_total",
			Help:      "Total number of chunks dropped past the retention horizon",
		}),

		PoolConnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "connects_total",
			Help:      "Total number of new database connections opened",
		}),
		PoolAcquires: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquires_total",
			Help:      "Total number of connection checkouts",
		}),
		PoolReleases: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "releases_total",
			Help:      "Total number of connection checkins",
		}),
		PoolExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "exhausted_total",
			Help:      "Total number of acquires that timed out waiting for a connection",
		}),
		PoolConns: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "connections",
			Help:      "Number of pooled connections by state",
		}, []string{"state"}),

		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulMaintWatch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_maintenance_timestamp",
			Help:      "Unix timestamp of last successful maintenance run",
		}),
	}
}

// PoolHooks returns pool instrumentation callbacks wired to the pool
// counters, for passing into the postgres pool config.
func (m *Metrics) PoolHooks() postgres.Hooks {
	return postgres.Hooks{
		OnConnect: m.PoolConnects.Inc,
		OnAcquire: m.PoolAcquires.Inc,
		OnRelease: m.PoolReleases.Inc,
	}
}

// ObservePoolStat copies a pgxpool stat snapshot into the connection
// gauges. Call it periodically or on scrape.
func (m *Metrics) ObservePoolStat(total, idle, inUse int32) {
	m.PoolConns.WithLabelValues("total").Set(float64(total))
	m.PoolConns.WithLabelValues("idle").Set(float64(idle))
	m.PoolConns.WithLabelValues("in_use").Set(float64(inUse))
}

// RecordMaintenanceRun records one maintenance cycle: run count by status,
// duration, chunks transitioned, and the health watermark on success.
func (m *Metrics) RecordMaintenanceRun(job string, durationSeconds float64, chunks int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MaintenanceRuns.WithLabelValues(job, status).Inc()
	m.MaintenanceDuration.WithLabelValues(job).Observe(durationSeconds)
	if err != nil {
		return
	}
	switch job {
	case "compression":
		m.ChunksCompressed.Add(float64(chunks))
	case "retention":
		m.ChunksDropped.Add(float64(chunks))
	}
	m.LastSuccessfulMaintWatch.SetToCurrentTime()
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
