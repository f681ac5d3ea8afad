package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream metrics
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_messages_received_total",
			Help: "Total number of messages received from the stream source",
		},
		[]string{"source"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsvp_queue_depth",
			Help: "Current number of messages waiting in the ingestion queue",
		},
	)

	QueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_queue_dropped_total",
			Help: "Total number of messages dropped by the drop-oldest overflow policy",
		},
	)

	MalformedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_malformed_messages_total",
			Help: "Total number of messages that could not be decoded",
		},
	)

	// Batch metrics
	BatchesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_batches_processed_total",
			Help: "Total number of batches enriched and written",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rsvp_batch_duration_seconds",
			Help:    "Time taken to enrich and write one batch",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	RecordWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_record_writes_total",
			Help: "Total number of record writes by outcome",
		},
		[]string{"status"}, // status: committed, duplicate, failed
	)

	// Enrichment metrics
	EnrichmentLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_enrichment_lookups_total",
			Help: "Total number of event ids resolved per lookup tier",
		},
		[]string{"tier"}, // tier: cache, store, remote, unresolved
	)

	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_remote_requests_total",
			Help: "Total number of requests sent to the Meetup API",
		},
		[]string{"kind", "outcome"}, // kind: events, group
	)

	// Throttle metrics
	ThrottleWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_throttle_waits_total",
			Help: "Total number of times a caller waited for a new rate limit window",
		},
	)

	ThrottleWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rsvp_throttle_wait_seconds",
			Help:    "Time spent waiting for a new rate limit window",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
		},
	)
)
