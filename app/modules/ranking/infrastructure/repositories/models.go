package playerdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Player is a row of the user_preview table.
type Player struct {
	bun.BaseModel `bun:"table:user_preview,alias:up"`

	UserID       int64     `bun:"user_id,pk"`
	UserName     string    `bun:"user_name,notnull"`
	PlayerRating int       `bun:"player_rating,notnull,default:0"`
	IconID       int       `bun:"icon_id,notnull,default:0"`
	ExtraCol     int64     `bun:"extra_col,notnull,default:0"` // tier score
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// RankedPlayer is a Player with its 1-based position under the requested ordering.
type RankedPlayer struct {
	UserID       int64  `bun:"user_id"`
	UserName     string `bun:"user_name"`
	PlayerRating int    `bun:"player_rating"`
	IconID       int    `bun:"icon_id"`
	ExtraCol     int64  `bun:"extra_col"`
	RankIndex    int64  `bun:"rank_index"`
}

// Sort selects the column the leaderboard is ranked by.
type Sort string

const (
	SortRating Sort = "rating"
	SortRank   Sort = "rank"
)

// Column returns the user_preview column backing s.
func (s Sort) Column() (string, error) {
	switch s {
	case SortRating:
		return "player_rating", nil
	case SortRank:
		return "extra_col", nil
	default:
		return "", ErrInvalidSort
	}
}

// ParseSort maps a request value to a Sort. Unknown values rank by rating.
func ParseSort(v string) Sort {
	if Sort(v) == SortRank {
		return SortRank
	}
	return SortRating
}
