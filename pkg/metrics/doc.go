/*
Package metrics provides Prometheus metrics collection and exposition
for the registry.

The metrics package defines and registers every registry metric using
the Prometheus client library, giving observability into catalog size,
quota usage, ingestion pipeline throughput, job broker connectivity,
and boundary API latency. Metrics are exposed via an HTTP endpoint for
scraping by a Prometheus server, alongside /health, /ready, and /live
handlers for operational checks.

# Metric Categories

Catalog: packages, versions by status, authors, storage used.

Ingestion: jobs by terminal state, per-state duration, in-flight job
count, archive validation failure count by rejection status.

Job broker: reconnect count, connection gauge, authorization latency.

Boundary API: request count and duration by operation, rate-limit
rejection count by route.

Catalog snapshot: generation duration, entry count, total snapshots
written.

# Usage

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
	http.HandleFunc("/live", metrics.LivenessHandler())

	metrics.RegisterComponent("storage", true, "")
	metrics.RegisterComponent("broker", true, "")
	metrics.RegisterComponent("ingestionapi", true, "")

Timing an operation:

	timer := metrics.NewTimer()
	err := doUpload()
	timer.ObserveDurationVec(metrics.IngestionDuration, "uploading")

Periodic sampling of persisted state:

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

# Readiness

GetReadiness checks storage, broker, and ingestionapi as the
registry's critical components — the same triad a load balancer or
orchestrator should gate traffic on.
*/
package metrics
