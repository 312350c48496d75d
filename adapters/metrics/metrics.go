// Package metrics provides Prometheus metrics collection for ReplyGate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for ReplyGate.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Quota metrics
	ConsumeDecisions *prometheus.CounterVec
	RepliesTotal     prometheus.Counter
	ReplyTokensTotal prometheus.Counter

	// Purchase metrics
	VerificationResults *prometheus.CounterVec

	// Webhook metrics
	WebhookNotifications *prometheus.CounterVec
	WebhookDuplicates    prometheus.Counter
	WebhookUnmatched     prometheus.Counter
	FreeTierDisabled     prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "replygate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "replygate",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		ConsumeDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "consume_decisions_total",
				Help:      "Quota consumption decisions by outcome",
			},
			[]string{"tier", "allowed", "reason"},
		),
		RepliesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "replies_total",
				Help:      "Total number of committed replies",
			},
		),
		ReplyTokensTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "reply_tokens_total",
				Help:      "Total tokens spent generating replies",
			},
		),

		VerificationResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "purchase_verifications_total",
				Help:      "Purchase verification attempts by verifier and result",
			},
			[]string{"verifier", "result"},
		),

		WebhookNotifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "webhook_notifications_total",
				Help:      "Play webhook notifications by classified action",
			},
			[]string{"action"},
		),
		WebhookDuplicates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "webhook_duplicates_total",
				Help:      "Webhook notifications skipped as duplicates",
			},
		),
		WebhookUnmatched: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "webhook_unmatched_total",
				Help:      "Webhook notifications whose purchase token matched no device",
			},
		),
		FreeTierDisabled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "free_tier_disabled_total",
				Help:      "Devices permanently barred from the free tier",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replygate",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "replygate",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// NormalizePath bounds the label cardinality of request paths.
func NormalizePath(path string) string {
	if len(path) > 50 {
		return path[:50] + "..."
	}
	return path
}
