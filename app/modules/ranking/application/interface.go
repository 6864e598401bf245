package rankingservice

import "context"

// Service defines the ranking operations exposed to handlers and subscribers.
type Service interface {
	// ListPlayers returns one page of the leaderboard, or every match when
	// the query has a keyword.
	ListPlayers(ctx context.Context, q ListQuery) ([]PlayerView, error)

	// TierLookup maps a score to its label.
	TierLookup(score int64) TierInfo

	// Ladder returns every label from B5 to LEGEND ★1 with its entry score.
	Ladder() []LadderStep

	// TierDistribution counts players per tier, in ladder order.
	TierDistribution(ctx context.Context) ([]TierCount, error)

	// TierChart renders the tier distribution as a PNG bar chart.
	TierChart(ctx context.Context) ([]byte, error)

	// ExportPlayers renders the whole ranked table as an XLSX workbook.
	ExportPlayers(ctx context.Context, sort string) ([]byte, error)

	// UpsertPlayer stores one player and publishes a TierChangedEvent when
	// the label moved.
	UpsertPlayer(ctx context.Context, update PlayerUpdate) (*UpsertResult, error)

	// ImportPlayers stores every update in one transaction.
	ImportPlayers(ctx context.Context, updates []PlayerUpdate) ([]UpsertResult, error)
}
