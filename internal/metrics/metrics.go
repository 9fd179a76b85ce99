package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Count of webhook events by type and outcome",
}, []string{"event_type", "outcome"})

var WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "gym",
	Subsystem: "webhook",
	Name:      "handle_duration_seconds",
	Help:      "Duration of webhook handling by event type",
	Buckets:   prometheus.DefBuckets,
}, []string{"event_type"})

var WebhookRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "webhook",
	Name:      "rejected_total",
	Help:      "Count of webhook deliveries rejected before processing",
}, []string{"reason"})

var UnverifiedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "webhook",
	Name:      "unverified_events_total",
	Help:      "Count of events accepted without signature verification",
}, []string{"mode"})

var SideEffectFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "side_effect",
	Name:      "failures_total",
	Help:      "Count of failed best-effort side effects",
}, []string{"effect"})

var LedgerCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "ledger",
	Name:      "cache_lookups_total",
	Help:      "Count of processed-event cache lookups by result",
}, []string{"result"})
