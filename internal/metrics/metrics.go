// Package metrics holds the process-wide Prometheus collectors, grounded
// on the teacher's internal/metrics package: a package-level var block of
// typed collectors plus a single Register entry point.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quentin",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	TicketsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "tickets_created_total",
		Help:      "Total number of tickets created.",
	})

	TicketStateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "ticket_state_transitions_total",
		Help:      "Total ticket state transitions by from/to state type.",
	}, []string{"from", "to"})

	TicketsByState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quentin",
		Name:      "tickets_by_state",
		Help:      "Current number of tickets in each state type.",
	}, []string{"state"})

	CatalogCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "catalog_cache_hits_total",
		Help:      "Total catalog search cache hits.",
	})

	CatalogCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "catalog_cache_misses_total",
		Help:      "Total catalog search cache misses.",
	})

	SearcherQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "searcher_queries_total",
		Help:      "Total searcher queries issued, by indexer and outcome.",
	}, []string{"indexer", "outcome"})

	SearcherQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quentin",
		Name:      "searcher_query_duration_seconds",
		Help:      "Duration of a single indexer search query.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"indexer"})

	TorrentsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quentin",
		Name:      "torrents_active",
		Help:      "Number of torrents currently tracked by the torrent client.",
	})

	TorrentDownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quentin",
		Name:      "torrent_download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	PipelineJobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quentin",
		Name:      "pipeline_jobs_active",
		Help:      "Number of pipeline jobs (conversion+placement) currently in flight.",
	})

	PipelineJobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quentin",
		Name:      "pipeline_job_duration_seconds",
		Help:      "Duration of a pipeline job by outcome.",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 900},
	}, []string{"outcome"})

	PipelineJobFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "pipeline_job_failures_total",
		Help:      "Total pipeline job failures by phase.",
	}, []string{"phase"})

	BroadcastSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quentin",
		Name:      "broadcast_subscribers",
		Help:      "Number of currently connected WebSocket subscribers.",
	})

	BroadcastDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "broadcast_dropped_total",
		Help:      "Total broadcast messages dropped due to a lagging subscriber.",
	})

	RetryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quentin",
		Name:      "retry_attempts_total",
		Help:      "Total retry attempts by operation and outcome.",
	}, []string{"operation", "outcome"})
)

// Register registers every collector against reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TicketsCreatedTotal,
		TicketStateTransitionsTotal,
		TicketsByState,
		CatalogCacheHitsTotal,
		CatalogCacheMissesTotal,
		SearcherQueriesTotal,
		SearcherQueryDuration,
		TorrentsActive,
		TorrentDownloadSpeedBytes,
		PipelineJobsActive,
		PipelineJobDuration,
		PipelineJobFailuresTotal,
		BroadcastSubscribers,
		BroadcastDroppedTotal,
		RetryAttemptsTotal,
	)
}
