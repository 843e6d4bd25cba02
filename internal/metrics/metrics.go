package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	StoriesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stories_created_total",
			Help: "Total number of stories created",
		},
	)

	StoryViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "story_views_total",
			Help: "Total number of story views",
		},
	)

	StoryLikesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_likes_total",
			Help: "Total number of like toggles by resulting state",
		},
		[]string{"state"},
	)

	StoryRatingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "story_ratings_total",
			Help: "Total number of ratings submitted",
		},
	)

	StoryPurchasesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "story_purchases_total",
			Help: "Total number of story purchases",
		},
	)

	AuthorEarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "author_earnings_total",
			Help: "Total amount credited to author wallets",
		},
	)

	OptimisticRollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimistic_rollbacks_total",
			Help: "Total number of optimistic updates reverted after a failed commit",
		},
		[]string{"operation"},
	)

	OfflineActionsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_actions_enqueued_total",
			Help: "Total number of mutations queued for later replay",
		},
		[]string{"type"},
	)

	OfflineReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_replays_total",
			Help: "Total number of offline action replays by result",
		},
		[]string{"type", "result"},
	)

	OfflineDeadLettersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_dead_letters_total",
			Help: "Total number of offline actions that exhausted their retries",
		},
	)

	NetworkOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "network_online",
			Help: "1 when the network monitor considers the backend reachable",
		},
	)

	NetworkProbeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "network_probe_latency_seconds",
			Help:    "Latency of successful reachability probes",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoriesReconciledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stories_reconciled_total",
			Help: "Total number of stories repaired by the reconciliation worker",
		},
	)

	WorkerLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_latency_seconds",
			Help:    "Worker execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Number of live per-user story stores",
		},
	)
)
