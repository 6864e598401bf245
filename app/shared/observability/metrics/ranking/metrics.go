package rankingmetrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RankingMetrics records service, ingest and HTTP activity for the ranking module.
type RankingMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, d time.Duration)

	// RecordTierChange counts a player's tier moving in direction ("promotion" or "demotion").
	RecordTierChange(ctx context.Context, direction string)
	// RecordIngest counts one ingest message by outcome ("ok", "invalid", "error").
	RecordIngest(ctx context.Context, outcome string)
	// RecordHTTPRequest observes one served request.
	RecordHTTPRequest(ctx context.Context, route string, status int, d time.Duration)
}

type prometheusMetrics struct {
	operations   *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	tierChanges  *prometheus.CounterVec
	ingest       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheus registers the ranking collectors on reg.
func NewPrometheus(reg prometheus.Registerer) RankingMetrics {
	m := &prometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taco_rank",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"service", "operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taco_rank",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		tierChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taco_rank",
			Name:      "tier_changes_total",
			Help:      "Tier label changes observed on upsert.",
		}, []string{"direction"}),
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taco_rank",
			Name:      "ingest_messages_total",
			Help:      "Player update messages received over NATS.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taco_rank",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taco_rank",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.operations, m.durations, m.tierChanges, m.ingest, m.httpRequests, m.httpDuration)
	return m
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(service, operation, "attempt").Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(service, operation, "success").Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(service, operation, "failure").Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	m.durations.WithLabelValues(service, operation).Observe(d.Seconds())
}

func (m *prometheusMetrics) RecordTierChange(_ context.Context, direction string) {
	m.tierChanges.WithLabelValues(direction).Inc()
}

func (m *prometheusMetrics) RecordIngest(_ context.Context, outcome string) {
	m.ingest.WithLabelValues(outcome).Inc()
}

func (m *prometheusMetrics) RecordHTTPRequest(_ context.Context, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

type noop struct{}

// NewNoop returns metrics that record nothing.
func NewNoop() RankingMetrics { return noop{} }

func (noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (noop) RecordOperationFailure(context.Context, string, string)                 {}
func (noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noop) RecordTierChange(context.Context, string)                               {}
func (noop) RecordIngest(context.Context, string)                                   {}
func (noop) RecordHTTPRequest(context.Context, string, int, time.Duration)          {}
