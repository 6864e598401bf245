package rankingservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	rankingdomain "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/domain"
	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
	rankingmetrics "github.com/Black-And-White-Club/taco-rank/app/shared/observability/metrics/ranking"
	"github.com/Black-And-White-Club/taco-rank/app/shared/results"
	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "RankingService"

// maxPage bounds the page number so the row offset cannot overflow.
const maxPage = 1_000_000

// RankingService implements the Service interface.
type RankingService struct {
	repo      playerdb.Repository
	logger    *slog.Logger
	metrics   rankingmetrics.RankingMetrics
	tracer    trace.Tracer
	db        *bun.DB
	publisher message.Publisher
	cfg       config.RankingConfig
	now       func() time.Time
}

// NewRankingService creates a new RankingService. publisher may be nil, in
// which case tier changes are not announced.
func NewRankingService(
	repo playerdb.Repository,
	logger *slog.Logger,
	metrics rankingmetrics.RankingMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	publisher message.Publisher,
	cfg config.RankingConfig,
) *RankingService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return &RankingService{
		repo:      repo,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ListPlayers returns a page of the leaderboard or, with a keyword, every
// matching player.
func (s *RankingService) ListPlayers(ctx context.Context, q ListQuery) ([]PlayerView, error) {
	listTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[[]PlayerView, error], error) {
		return s.listPlayersLogic(ctx, db, q)
	}

	identifier := fmt.Sprintf("sort=%s page=%d", q.Sort, q.Page)
	result, err := withTelemetry(s, ctx, "ListPlayers", identifier, func(ctx context.Context) (results.OperationResult[[]PlayerView, error], error) {
		return runInTx(s, ctx, listTx)
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return nil, *result.Failure
	}
	return *result.Success, nil
}

func (s *RankingService) listPlayersLogic(ctx context.Context, db bun.IDB, q ListQuery) (results.OperationResult[[]PlayerView, error], error) {
	sort := playerdb.ParseSort(q.Sort)
	keyword := rankingdomain.NormalizeKeyword(q.Keyword, s.cfg.WidenKeyword)

	var (
		rows []playerdb.RankedPlayer
		err  error
	)
	if keyword != "" {
		rows, err = s.repo.SearchRanked(ctx, db, sort, keyword)
	} else {
		page := min(max(q.Page, 1), maxPage)
		rows, err = s.repo.ListRanked(ctx, db, sort, s.cfg.PageSize, (page-1)*s.cfg.PageSize)
	}
	if err != nil {
		return results.OperationResult[[]PlayerView, error]{}, fmt.Errorf("failed to load players: %w", err)
	}

	views := make([]PlayerView, 0, len(rows))
	for _, row := range rows {
		views = append(views, s.toView(row))
	}
	return results.SuccessResult[[]PlayerView, error](views), nil
}

func (s *RankingService) toView(row playerdb.RankedPlayer) PlayerView {
	return PlayerView{
		UserName:      row.UserName,
		PlayerRating:  row.PlayerRating,
		IconID:        row.IconID,
		ExtraCol:      row.ExtraCol,
		RankIndex:     row.RankIndex,
		RankText:      rankingdomain.ComputeTier(row.ExtraCol),
		RatingBand:    string(rankingdomain.BandForRating(row.PlayerRating)),
		RatingDisplay: rankingdomain.DisplayRating(row.PlayerRating, s.cfg.RatingMask),
	}
}

// TierLookup maps score to its label and the score of the next step.
func (s *RankingService) TierLookup(score int64) TierInfo {
	label := rankingdomain.Compute(score)
	info := TierInfo{
		Score:    score,
		RankText: label.String(),
		Tier:     label.Tier.String(),
		NextAt:   rankingdomain.NextStepAt(score),
	}
	if label.Tier == rankingdomain.TierLegend {
		info.Stars = label.Stars
	} else {
		info.Sub = label.Sub
	}
	return info
}

// Ladder returns the entry score of every label up to LEGEND ★1.
func (s *RankingService) Ladder() []LadderStep {
	ladder := rankingdomain.Ladder()
	steps := make([]LadderStep, len(ladder))
	for i, step := range ladder {
		steps[i] = LadderStep{RankText: step.Label.String(), At: step.At}
	}
	return steps
}

// TierDistribution counts players per tier.
func (s *RankingService) TierDistribution(ctx context.Context) ([]TierCount, error) {
	distTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[[]TierCount, error], error) {
		return s.tierDistributionLogic(ctx, db)
	}

	result, err := withTelemetry(s, ctx, "TierDistribution", "all", func(ctx context.Context) (results.OperationResult[[]TierCount, error], error) {
		return runInTx(s, ctx, distTx)
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return nil, *result.Failure
	}
	return *result.Success, nil
}

func (s *RankingService) tierDistributionLogic(ctx context.Context, db bun.IDB) (results.OperationResult[[]TierCount, error], error) {
	scores, err := s.repo.ListScores(ctx, db)
	if err != nil {
		return results.OperationResult[[]TierCount, error]{}, fmt.Errorf("failed to list scores: %w", err)
	}

	tiers := rankingdomain.Tiers()
	counts := make([]TierCount, len(tiers))
	for i, t := range tiers {
		counts[i].Tier = t.String()
	}
	for _, score := range scores {
		counts[rankingdomain.Compute(score).Tier].Count++
	}
	return results.SuccessResult[[]TierCount, error](counts), nil
}

// TierChart renders the current tier distribution.
func (s *RankingService) TierChart(ctx context.Context) ([]byte, error) {
	counts, err := s.TierDistribution(ctx)
	if err != nil {
		return nil, err
	}
	return GenerateTierChart(counts, DefaultPalette)
}

// ExportPlayers writes the full ranked table to an XLSX workbook.
func (s *RankingService) ExportPlayers(ctx context.Context, sort string) ([]byte, error) {
	exportTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[[]byte, error], error) {
		return s.exportPlayersLogic(ctx, db, playerdb.ParseSort(sort))
	}

	result, err := withTelemetry(s, ctx, "ExportPlayers", sort, func(ctx context.Context) (results.OperationResult[[]byte, error], error) {
		return runInTx(s, ctx, exportTx)
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return nil, *result.Failure
	}
	return *result.Success, nil
}

func (s *RankingService) exportPlayersLogic(ctx context.Context, db bun.IDB, sort playerdb.Sort) (results.OperationResult[[]byte, error], error) {
	total, err := s.repo.Count(ctx, db)
	if err != nil {
		return results.OperationResult[[]byte, error]{}, fmt.Errorf("failed to count players: %w", err)
	}

	var rows []playerdb.RankedPlayer
	if total > 0 {
		rows, err = s.repo.ListRanked(ctx, db, sort, total, 0)
		if err != nil {
			return results.OperationResult[[]byte, error]{}, fmt.Errorf("failed to load players: %w", err)
		}
	}

	data, err := WritePlayersXLSX(rows)
	if err != nil {
		return results.OperationResult[[]byte, error]{}, fmt.Errorf("failed to write workbook: %w", err)
	}
	return results.SuccessResult[[]byte, error](data), nil
}

type upsertOutcome struct {
	result UpsertResult
	event  *TierChangedEvent
}

// UpsertPlayer validates and stores update, then announces a tier change.
func (s *RankingService) UpsertPlayer(ctx context.Context, update PlayerUpdate) (*UpsertResult, error) {
	upsertTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[upsertOutcome, error], error) {
		if err := validateUpdate(update); err != nil {
			return results.FailureResult[upsertOutcome, error](err), nil
		}
		out, err := s.upsertOne(ctx, db, update)
		if err != nil {
			return results.OperationResult[upsertOutcome, error]{}, err
		}
		return results.SuccessResult[upsertOutcome, error](out), nil
	}

	identifier := fmt.Sprintf("user_id=%d", update.UserID)
	result, err := withTelemetry(s, ctx, "UpsertPlayer", identifier, func(ctx context.Context) (results.OperationResult[upsertOutcome, error], error) {
		return runInTx(s, ctx, upsertTx)
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return nil, *result.Failure
	}

	out := *result.Success
	s.publishTierChanges(ctx, out)
	return &out.result, nil
}

// ImportPlayers validates every update before writing any of them.
func (s *RankingService) ImportPlayers(ctx context.Context, updates []PlayerUpdate) ([]UpsertResult, error) {
	importTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[[]upsertOutcome, error], error) {
		if len(updates) == 0 {
			return results.FailureResult[[]upsertOutcome, error](validationErr("updates", "must not be empty")), nil
		}
		for i, u := range updates {
			if err := validateUpdate(u); err != nil {
				var ve *ValidationError
				if errors.As(err, &ve) {
					err = validationErr(fmt.Sprintf("updates[%d].%s", i, ve.Field), ve.Reason)
				}
				return results.FailureResult[[]upsertOutcome, error](err), nil
			}
		}

		outcomes := make([]upsertOutcome, 0, len(updates))
		for _, u := range updates {
			out, err := s.upsertOne(ctx, db, u)
			if err != nil {
				return results.OperationResult[[]upsertOutcome, error]{}, err
			}
			outcomes = append(outcomes, out)
		}
		return results.SuccessResult[[]upsertOutcome, error](outcomes), nil
	}

	identifier := fmt.Sprintf("count=%d", len(updates))
	result, err := withTelemetry(s, ctx, "ImportPlayers", identifier, func(ctx context.Context) (results.OperationResult[[]upsertOutcome, error], error) {
		return runInTx(s, ctx, importTx)
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return nil, *result.Failure
	}

	outcomes := *result.Success
	imported := make([]UpsertResult, len(outcomes))
	for i, out := range outcomes {
		imported[i] = out.result
	}
	s.publishTierChanges(ctx, outcomes...)
	return imported, nil
}

func (s *RankingService) upsertOne(ctx context.Context, db bun.IDB, u PlayerUpdate) (upsertOutcome, error) {
	prev, err := s.repo.GetByID(ctx, db, u.UserID)
	if err != nil && !errors.Is(err, playerdb.ErrNotFound) {
		return upsertOutcome{}, fmt.Errorf("failed to load player %d: %w", u.UserID, err)
	}

	player := &playerdb.Player{
		UserID:       u.UserID,
		UserName:     strings.TrimSpace(u.UserName),
		PlayerRating: u.PlayerRating,
		IconID:       u.IconID,
		ExtraCol:     u.ExtraCol,
	}
	if err := s.repo.Upsert(ctx, db, player); err != nil {
		return upsertOutcome{}, fmt.Errorf("failed to upsert player %d: %w", u.UserID, err)
	}

	current := rankingdomain.Compute(u.ExtraCol)
	out := upsertOutcome{result: UpsertResult{UserID: u.UserID, Current: current.String()}}
	if prev == nil {
		return out, nil
	}

	before := rankingdomain.Compute(prev.ExtraCol)
	out.result.Previous = before.String()
	if before != current {
		out.result.Changed = true
		out.event = &TierChangedEvent{
			UserID:     u.UserID,
			UserName:   player.UserName,
			From:       before.String(),
			To:         current.String(),
			Promotion:  before.Less(current),
			OccurredAt: s.now().UTC(),
		}
	}
	return out, nil
}

func validateUpdate(u PlayerUpdate) error {
	switch {
	case u.UserID <= 0:
		return validationErr("user_id", "must be positive")
	case strings.TrimSpace(u.UserName) == "":
		return validationErr("user_name", "must not be empty")
	case u.PlayerRating < 0:
		return validationErr("player_rating", "must not be negative")
	case u.ExtraCol < 0:
		return validationErr("extra_col", "must not be negative")
	}
	return nil
}

// publishTierChanges announces committed tier changes. Publish failures are
// logged only; the write has already succeeded.
func (s *RankingService) publishTierChanges(ctx context.Context, outcomes ...upsertOutcome) {
	if s.publisher == nil {
		return
	}
	for _, out := range outcomes {
		if out.event == nil {
			continue
		}
		payload, err := json.Marshal(out.event)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to marshal tier change", attr.ExtractCorrelationID(ctx), attr.Error(err))
			continue
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if cid := attr.CorrelationID(ctx); cid != "" {
			middleware.SetCorrelationID(cid, msg)
		}
		if err := s.publisher.Publish(TierChangedV1, msg); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish tier change",
				attr.ExtractCorrelationID(ctx),
				attr.Int64("user_id", out.event.UserID),
				attr.Error(err),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *RankingService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
		}
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	// Infrastructure error
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	// Domain failure
	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.DebugContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *RankingService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {

	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})

	return result, err
}
