package rankinghandlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	rankingservice "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/application"
	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RankingHandlers implements the Handlers interface.
type RankingHandlers struct {
	service rankingservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRankingHandlers creates a new RankingHandlers instance.
func NewRankingHandlers(
	service rankingservice.Service,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	return &RankingHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleListPlayers serves GET /api/rank?sort=rating|rank&keyword=&page=.
// An unparsable page is treated as the first page.
func (h *RankingHandlers) HandleListPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.ListPlayers")
	defer span.End()

	params := r.URL.Query()
	page, _ := strconv.Atoi(params.Get("page"))
	query := rankingservice.ListQuery{
		Sort:    params.Get("sort"),
		Keyword: params.Get("keyword"),
		Page:    page,
	}
	span.SetAttributes(attribute.String("sort", query.Sort), attribute.Int("page", page))

	players, err := h.service.ListPlayers(ctx, query)
	if err != nil {
		h.logger.ErrorContext(ctx, "List players failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// HandleTierLookup serves GET /api/rank/tier?score=N.
func (h *RankingHandlers) HandleTierLookup(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "http.TierLookup")
	defer span.End()

	raw := r.URL.Query().Get("score")
	score, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "score must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, h.service.TierLookup(score))
}

// HandleLadder serves GET /api/rank/ladder.
func (h *RankingHandlers) HandleLadder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Ladder())
}

// HandleTierDistribution serves GET /api/rank/tiers.
func (h *RankingHandlers) HandleTierDistribution(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.TierDistribution")
	defer span.End()

	counts, err := h.service.TierDistribution(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Tier distribution failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load tier distribution")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleTierChart serves GET /api/rank/tiers/chart.png.
func (h *RankingHandlers) HandleTierChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.TierChart")
	defer span.End()

	png, err := h.service.TierChart(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Tier chart failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// HandleExportPlayers serves GET /api/rank/export.xlsx?sort=rating|rank.
func (h *RankingHandlers) HandleExportPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "http.ExportPlayers")
	defer span.End()

	data, err := h.service.ExportPlayers(ctx, r.URL.Query().Get("sort"))
	if err != nil {
		h.logger.ErrorContext(ctx, "Export failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export leaderboard")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

