package rankingsubscribers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rankingservice "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/application"
	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
	rankingmetrics "github.com/Black-And-White-Club/taco-rank/app/shared/observability/metrics/ranking"
	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationIDHeader is the NATS header carrying the publisher's correlation id.
const CorrelationIDHeader = "Correlation-ID"

// Ingest outcomes recorded per message.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

const handleTimeout = 10 * time.Second

// Reply is sent back to requesters that set a reply subject.
type Reply struct {
	Result *rankingservice.UpsertResult `json:"result,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

// IngestSubscriber consumes player updates from NATS and upserts them.
type IngestSubscriber struct {
	service rankingservice.Service
	logger  *slog.Logger
	metrics rankingmetrics.RankingMetrics
	tracer  trace.Tracer
	cfg     config.NATSConfig

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewIngestSubscriber creates a subscriber. Nothing connects until Start.
func NewIngestSubscriber(
	service rankingservice.Service,
	logger *slog.Logger,
	metrics rankingmetrics.RankingMetrics,
	tracer trace.Tracer,
	cfg config.NATSConfig,
) *IngestSubscriber {
	return &IngestSubscriber{
		service: service,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		cfg:     cfg,
	}
}

// ConnectOptions builds the client options for cfg, adding nkey
// authentication when a seed is configured.
func ConnectOptions(cfg config.NATSConfig, name string) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}
	if cfg.NKeySeed == "" {
		return opts, nil
	}

	kp, err := nkeys.FromSeed([]byte(cfg.NKeySeed))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	return append(opts, nats.Nkey(pub, kp.Sign)), nil
}

// Start connects to NATS and subscribes to the configured subject. Messages
// are handled until ctx is cancelled or Close is called.
func (s *IngestSubscriber) Start(ctx context.Context) error {
	opts, err := ConnectOptions(s.cfg, "taco-rank ingest")
	if err != nil {
		return err
	}

	conn, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := conn.Subscribe(s.cfg.Subject, func(msg *nats.Msg) {
		s.handleMsg(ctx, msg)
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to subject %s: %w", s.cfg.Subject, err)
	}

	if conn.IsConnected() {
		if err := conn.Flush(); err != nil {
			s.logger.WarnContext(ctx, "Failed to flush subscription", attr.Error(err))
		}
	}

	s.mu.Lock()
	s.conn, s.sub = conn, sub
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Subscribed to player updates",
		attr.String("subject", s.cfg.Subject),
		attr.String("url", conn.ConnectedUrlRedacted()),
	)

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

func (s *IngestSubscriber) handleMsg(parent context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(parent, handleTimeout)
	defer cancel()
	if cid := msg.Header.Get(CorrelationIDHeader); cid != "" {
		ctx = attr.WithCorrelationID(ctx, cid)
	}

	result, err := s.HandlePayload(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}

	reply := Reply{Result: result}
	if err != nil {
		reply.Error = err.Error()
	}
	data, mErr := json.Marshal(reply)
	if mErr != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal ingest reply", attr.Error(mErr))
		return
	}
	if rErr := msg.Respond(data); rErr != nil {
		s.logger.WarnContext(ctx, "Failed to reply to ingest request", attr.Error(rErr))
	}
}

// HandlePayload decodes one JSON player update and stores it.
func (s *IngestSubscriber) HandlePayload(ctx context.Context, data []byte) (*rankingservice.UpsertResult, error) {
	ctx, span := s.tracer.Start(ctx, "IngestSubscriber.HandlePayload")
	defer span.End()

	var update rankingservice.PlayerUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		s.metrics.RecordIngest(ctx, OutcomeInvalid)
		span.SetStatus(codes.Error, "decode")
		s.logger.WarnContext(ctx, "Discarding malformed player update",
			attr.ExtractCorrelationID(ctx),
			attr.Int("bytes", len(data)),
			attr.Error(err),
		)
		return nil, fmt.Errorf("failed to decode player update: %w", err)
	}
	span.SetAttributes(attribute.Int64("user_id", update.UserID))

	result, err := s.service.UpsertPlayer(ctx, update)
	if err != nil {
		var ve *rankingservice.ValidationError
		if errors.As(err, &ve) {
			s.metrics.RecordIngest(ctx, OutcomeInvalid)
			s.logger.WarnContext(ctx, "Rejected player update",
				attr.ExtractCorrelationID(ctx),
				attr.Int64("user_id", update.UserID),
				attr.Error(err),
			)
			return nil, err
		}
		s.metrics.RecordIngest(ctx, OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "Failed to store player update",
			attr.ExtractCorrelationID(ctx),
			attr.Int64("user_id", update.UserID),
			attr.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordIngest(ctx, OutcomeOK)
	s.logger.DebugContext(ctx, "Stored player update",
		attr.ExtractCorrelationID(ctx),
		attr.Int64("user_id", update.UserID),
		attr.String("rank_text", result.Current),
		attr.Bool("changed", result.Changed),
	)
	return result, nil
}

// Close drains the subscription and closes the connection. It is safe to
// call more than once.
func (s *IngestSubscriber) Close() error {
	s.mu.Lock()
	conn, sub := s.conn, s.sub
	s.conn, s.sub = nil, nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	conn.Close()
	return err
}
