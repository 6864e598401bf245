package playerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	rankingdomain "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// likeEscape is the LIKE escape character. Backslash is avoided because its
// meaning differs between Postgres and SQLite.
const likeEscape = '!'

// rankedCTE numbers every player under the requested ordering. user_name
// breaks ties so equal scores get a stable rank_index.
const rankedCTE = `WITH ranked AS (
	SELECT user_id, user_name, player_rating, icon_id, extra_col,
		ROW_NUMBER() OVER (ORDER BY ? DESC, user_name ASC) AS rank_index
	FROM user_preview
)
`

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new player repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// ListRanked returns one page of the ranked table.
func (r *Impl) ListRanked(ctx context.Context, db bun.IDB, sort Sort, limit, offset int) ([]RankedPlayer, error) {
	db = r.resolveDB(db)
	column, err := sort.Column()
	if err != nil {
		return nil, fmt.Errorf("playerdb.ListRanked: %w", err)
	}

	var rows []RankedPlayer
	err = db.NewRaw(rankedCTE+`SELECT * FROM ranked ORDER BY rank_index LIMIT ? OFFSET ?`,
		bun.Ident(column), limit, offset,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("playerdb.ListRanked: %w", err)
	}
	return rows, nil
}

// SearchRanked filters the ranked table by a literal, case-insensitive
// substring of user_name.
// rank_index is the player's position in the whole table, not in the result.
func (r *Impl) SearchRanked(ctx context.Context, db bun.IDB, sort Sort, keyword string) ([]RankedPlayer, error) {
	db = r.resolveDB(db)
	column, err := sort.Column()
	if err != nil {
		return nil, fmt.Errorf("playerdb.SearchRanked: %w", err)
	}

	pattern := "%" + rankingdomain.EscapeLike(keyword, likeEscape) + "%"

	var rows []RankedPlayer
	err = db.NewRaw(rankedCTE+`SELECT * FROM ranked WHERE user_name ? ? ESCAPE '!' ORDER BY rank_index`,
		bun.Ident(column), bun.Safe(likeOperator(db)), pattern,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("playerdb.SearchRanked: %w", err)
	}
	return rows, nil
}

// likeOperator picks a case-insensitive match operator. SQLite's LIKE already
// folds ASCII case; Postgres needs ILIKE.
func likeOperator(db bun.IDB) string {
	if db.Dialect().Name() == dialect.PG {
		return "ILIKE"
	}
	return "LIKE"
}

// Upsert creates or updates a player.
func (r *Impl) Upsert(ctx context.Context, db bun.IDB, player *Player) error {
	db = r.resolveDB(db)
	player.UpdatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(player).
		On("CONFLICT (user_id) DO UPDATE").
		Set("user_name = EXCLUDED.user_name").
		Set("player_rating = EXCLUDED.player_rating").
		Set("icon_id = EXCLUDED.icon_id").
		Set("extra_col = EXCLUDED.extra_col").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("playerdb.Upsert: %w", err)
	}
	return nil
}

// GetByID retrieves a player by user_id.
func (r *Impl) GetByID(ctx context.Context, db bun.IDB, userID int64) (*Player, error) {
	db = r.resolveDB(db)
	player := new(Player)
	err := db.NewSelect().
		Model(player).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("playerdb.GetByID: %w", err)
	}
	return player, nil
}

// ListScores returns the tier score of every player.
func (r *Impl) ListScores(ctx context.Context, db bun.IDB) ([]int64, error) {
	db = r.resolveDB(db)
	var scores []int64
	err := db.NewSelect().
		Model((*Player)(nil)).
		Column("extra_col").
		Scan(ctx, &scores)
	if err != nil {
		return nil, fmt.Errorf("playerdb.ListScores: %w", err)
	}
	return scores, nil
}

// Count returns the number of players.
func (r *Impl) Count(ctx context.Context, db bun.IDB) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().Model((*Player)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("playerdb.Count: %w", err)
	}
	return n, nil
}
