package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Orchestrator counters and histograms, partitioned by network.

var (
	// Submission driver
	DriverBatchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "batches_started_total",
		Help:      "Total batch transfer sessions started",
	}, []string{"network"})

	DriverBatchesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "batches_completed_total",
		Help:      "Total batch sessions in which every record reached a terminal status",
	}, []string{"network"})

	DriverSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "submissions_total",
		Help:      "Total signing requests dispatched to the wallet bridge",
	}, []string{"network"})

	DriverSubmissionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "submission_errors_total",
		Help:      "Total signer-level submission failures, by error class",
	}, []string{"network", "class"})

	DriverDuplicateSubmitsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "duplicate_submits_suppressed_total",
		Help:      "Re-entrant submit triggers absorbed by the dispatch guard",
	}, []string{"network"})

	DriverSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "skips_total",
		Help:      "Total positions skipped after a signer-level error",
	}, []string{"network"})

	DriverRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "retries_total",
		Help:      "Total signer retries for the same position",
	}, []string{"network"})

	DriverResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "resets_total",
		Help:      "Total orchestrator resets",
	}, []string{"network"})

	DriverSignLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "sign_duration_seconds",
		Help:      "Time from dispatching a signing request until a handle or error",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"network"})

	DriverQueueRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transferd",
		Subsystem: "driver",
		Name:      "queue_remaining",
		Help:      "Queue positions not yet submitted in the active batch",
	}, []string{"network"})

	// Confirmation watcher
	WatcherWatchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "watcher",
		Name:      "watches_started_total",
		Help:      "Total finality watches started (one per submission handle)",
	}, []string{"network"})

	WatcherConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "watcher",
		Name:      "confirmations_total",
		Help:      "Total finality watch completions, by terminal status",
	}, []string{"network", "status"})

	WatcherLateCallbacksIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "watcher",
		Name:      "late_callbacks_ignored_total",
		Help:      "Confirmation callbacks dropped because the record was already terminal or the session changed",
	}, []string{"network"})

	WatcherConfirmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transferd",
		Subsystem: "watcher",
		Name:      "confirm_duration_seconds",
		Help:      "Time from submission handle to terminal confirmation status",
		Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"network"})

	WatcherPendingConfirmations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transferd",
		Subsystem: "watcher",
		Name:      "pending_confirmations",
		Help:      "Records submitted but not yet terminal",
	}, []string{"network"})

	// Outbound RPC (wallet bridge + chain node)
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total outbound RPC calls, by endpoint, method, and status",
	}, []string{"endpoint", "method", "status"})

	RPCCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transferd",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Outbound RPC call duration",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint", "method"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "RPC calls delayed by the client-side rate limiter",
	}, []string{"endpoint"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transferd",
		Subsystem: "rpc",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per endpoint (0=closed, 1=open, 2=half-open)",
	}, []string{"endpoint"})

	// Journal
	JournalWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "journal",
		Name:      "writes_total",
		Help:      "Total journal write operations",
	}, []string{"op"})

	JournalWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "journal",
		Name:      "write_errors_total",
		Help:      "Total failed journal write operations",
	}, []string{"op"})

	// Event stream
	StreamEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "stream",
		Name:      "events_published_total",
		Help:      "Total record events published to the presentation stream",
	}, []string{"type"})

	StreamPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "stream",
		Name:      "publish_errors_total",
		Help:      "Total failed stream publishes",
	}, []string{"type"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Total alerts sent, by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferd",
		Subsystem: "alerts",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by the cooldown window",
	}, []string{"channel", "type"})
)
