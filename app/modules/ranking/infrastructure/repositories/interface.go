package playerdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository defines the contract for user_preview persistence.
// A nil db runs against the repository's own connection.
//
// Error semantics:
//   - ErrNotFound: Record does not exist
//   - ErrInvalidSort: sort has no backing column
//   - Other errors: Infrastructure failures (DB connection, query errors)
type Repository interface {
	// ListRanked returns one page of players ranked by sort, best first.
	ListRanked(ctx context.Context, db bun.IDB, sort Sort, limit, offset int) ([]RankedPlayer, error)

	// SearchRanked ranks the whole table by sort and returns the rows whose
	// user_name contains keyword. The keyword is matched literally.
	SearchRanked(ctx context.Context, db bun.IDB, sort Sort, keyword string) ([]RankedPlayer, error)

	// Upsert creates or replaces a player keyed by user_id.
	Upsert(ctx context.Context, db bun.IDB, player *Player) error

	// GetByID retrieves a player by user_id.
	GetByID(ctx context.Context, db bun.IDB, userID int64) (*Player, error)

	// ListScores returns every player's tier score.
	ListScores(ctx context.Context, db bun.IDB) ([]int64, error)

	// Count returns the number of players.
	Count(ctx context.Context, db bun.IDB) (int, error)
}
