// Package metrics registers the service's Prometheus collectors with the
// default registry. Metric names are prefixed with the "crm" namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crm"

// ── HTTP ──────────────────────────────────────────────────────────────────────

var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	},
	[]string{"method", "route", "status"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"method", "route"},
)

// ── Records ───────────────────────────────────────────────────────────────────

var ClientsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clients_created_total",
		Help:      "Total client records created.",
	},
)

// FieldTemplatesTotal counts template mutations.
// Label:
//   - op: "create", "rename" or "delete"
var FieldTemplatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "field_templates_total",
		Help:      "Field template mutations, by operation.",
	},
	[]string{"op"},
)

// ── Chat ──────────────────────────────────────────────────────────────────────

var ChatMessagesSent = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_messages_sent_total",
		Help:      "Total chat messages sent.",
	},
)

// ChatRoomsTotal counts private room lookups.
// Label:
//   - result: "created" or "existing"
var ChatRoomsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_rooms_total",
		Help:      "Private room get-or-create calls, by result.",
	},
	[]string{"result"},
)

var ChatMessagesMarkedRead = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_messages_marked_read_total",
		Help:      "Messages transitioned from unread to read.",
	},
)

// ── Analytics ─────────────────────────────────────────────────────────────────

// AnalyticsRefreshTotal counts snapshot refreshes.
// Label:
//   - result: "ok" or "error"
var AnalyticsRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_refresh_total",
		Help:      "Analytics snapshot refreshes, by result.",
	},
	[]string{"result"},
)

var AnalyticsRefreshDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analytics_refresh_duration_seconds",
		Help:      "Time spent computing and storing the analytics snapshot.",
		Buckets:   prometheus.DefBuckets,
	},
)

// AnalyticsSnapshotReads counts snapshot lookups.
// Label:
//   - result: "hit" or "miss"
var AnalyticsSnapshotReads = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_snapshot_reads_total",
		Help:      "Analytics snapshot cache lookups, by result.",
	},
	[]string{"result"},
)
