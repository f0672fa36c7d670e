package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog metrics
	PackagesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgforge_packages_total",
			Help: "Total number of registered packages",
		},
	)

	VersionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pkgforge_versions_total",
			Help: "Total number of version records by status",
		},
		[]string{"status"},
	)

	AuthorsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgforge_authors_total",
			Help: "Total number of registered authors",
		},
	)

	StorageUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgforge_storage_used_bytes",
			Help: "Total storage bytes consumed across all authors",
		},
	)

	// Ingestion pipeline metrics
	IngestionJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgforge_ingestion_jobs_total",
			Help: "Total number of ingestion jobs by terminal state",
		},
		[]string{"state"},
	)

	IngestionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pkgforge_ingestion_duration_seconds",
			Help:    "Time taken to run an upload through the ingestion pipeline",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	IngestionInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgforge_ingestion_jobs_in_flight",
			Help: "Number of ingestion jobs currently occupying a pipeline worker slot",
		},
	)

	ArchiveValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgforge_archive_validation_failures_total",
			Help: "Total number of archive validation failures by failure status",
		},
		[]string{"status"},
	)

	// Job broker metrics
	BrokerReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pkgforge_broker_reconnects_total",
			Help: "Total number of job broker reconnect attempts",
		},
	)

	BrokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgforge_broker_connected",
			Help: "Whether the job broker connection is currently established (1) or not (0)",
		},
	)

	BrokerAuthorizationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pkgforge_broker_authorization_duration_seconds",
			Help:    "Time taken for the job broker to authorize a job",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Registry API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgforge_api_requests_total",
			Help: "Total number of boundary API calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pkgforge_api_request_duration_seconds",
			Help:    "Boundary API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgforge_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the admission rate limiter, by route",
		},
		[]string{"route"},
	)

	// Catalog snapshot metrics
	CatalogSnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pkgforge_catalog_snapshot_duration_seconds",
			Help:    "Time taken to render and write a catalog snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	CatalogSnapshotEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkgforge_catalog_snapshot_entries",
			Help: "Number of entries in the most recently generated catalog snapshot",
		},
	)

	CatalogSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pkgforge_catalog_snapshots_total",
			Help: "Total number of catalog snapshots generated",
		},
	)
)

func init() {
	prometheus.MustRegister(PackagesTotal)
	prometheus.MustRegister(VersionsTotal)
	prometheus.MustRegister(AuthorsTotal)
	prometheus.MustRegister(StorageUsedBytes)

	prometheus.MustRegister(IngestionJobsTotal)
	prometheus.MustRegister(IngestionDuration)
	prometheus.MustRegister(IngestionInFlight)
	prometheus.MustRegister(ArchiveValidationFailures)

	prometheus.MustRegister(BrokerReconnectsTotal)
	prometheus.MustRegister(BrokerConnected)
	prometheus.MustRegister(BrokerAuthorizationDuration)

	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(RateLimitRejectionsTotal)

	prometheus.MustRegister(CatalogSnapshotDuration)
	prometheus.MustRegister(CatalogSnapshotEntries)
	prometheus.MustRegister(CatalogSnapshotsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
