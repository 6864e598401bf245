package rankingrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	rankingservice "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/application"
	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
	rankingmetrics "github.com/Black-And-White-Club/taco-rank/app/shared/observability/metrics/ranking"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RankingRouter consumes the events the ranking service publishes.
type RankingRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     message.Subscriber
	metrics        rankingmetrics.RankingMetrics
	tracer         trace.Tracer
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewRankingRouter wraps router. Router metrics are registered on
// prometheusRegistry when it is non-nil.
func NewRankingRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	rankingMetrics rankingmetrics.RankingMetrics,
	tracer trace.Tracer,
	prometheusRegistry *prometheus.Registry,
) *RankingRouter {
	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "", "")
		metricsBuilder = &builder
	}
	return &RankingRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		metrics:        rankingMetrics,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
	}
}

// Configure adds middleware and registers the event handlers.
func (r *RankingRouter) Configure(ctx context.Context) error {
	if r.metricsBuilder != nil {
		r.logger.InfoContext(ctx, "Adding Prometheus router metrics middleware")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	if err := r.RegisterHandlers(ctx); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	return nil
}

// RegisterHandlers subscribes each handler to its topic.
func (r *RankingRouter) RegisterHandlers(ctx context.Context) error {
	eventsToHandlers := map[string]message.NoPublishHandlerFunc{
		rankingservice.TierChangedV1: r.HandleTierChanged,
	}

	for topic, handlerFunc := range eventsToHandlers {
		handlerName := fmt.Sprintf("ranking.%s", topic)
		r.Router.AddNoPublisherHandler(handlerName, topic, r.subscriber, handlerFunc)
		r.logger.DebugContext(ctx, "Registered handler", attr.String("handler", handlerName))
	}
	return nil
}

// HandleTierChanged records a committed promotion or demotion. Undecodable
// payloads are acknowledged and dropped so they are not redelivered.
func (r *RankingRouter) HandleTierChanged(msg *message.Message) error {
	ctx, span := r.tracer.Start(msg.Context(), "RankingRouter.HandleTierChanged")
	defer span.End()

	if cid := middleware.MessageCorrelationID(msg); cid != "" {
		ctx = attr.WithCorrelationID(ctx, cid)
	}

	var event rankingservice.TierChangedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		r.logger.ErrorContext(ctx, "Dropping malformed tier change",
			attr.String("message_id", msg.UUID),
			attr.Error(err),
		)
		return nil
	}
	span.SetAttributes(
		attribute.Int64("user_id", event.UserID),
		attribute.String("from", event.From),
		attribute.String("to", event.To),
	)

	direction := "demotion"
	if event.Promotion {
		direction = "promotion"
	}
	r.metrics.RecordTierChange(ctx, direction)

	r.logger.InfoContext(ctx, "Player tier changed",
		attr.ExtractCorrelationID(ctx),
		attr.Int64("user_id", event.UserID),
		attr.String("user_name", event.UserName),
		attr.String("from", event.From),
		attr.String("to", event.To),
		attr.String("direction", direction),
	)
	return nil
}

// Close stops the router.
func (r *RankingRouter) Close() error {
	return r.Router.Close()
}
