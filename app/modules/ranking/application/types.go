package rankingservice

import "time"

// TierChangedV1 is the topic a TierChangedEvent is published on.
const TierChangedV1 = "ranking.tier.changed.v1"

// ListQuery selects a leaderboard view. Page is 1-based; values below 1 mean 1.
type ListQuery struct {
	Sort    string
	Keyword string
	Page    int
}

// PlayerView is one leaderboard row as served to clients.
type PlayerView struct {
	UserName      string `json:"user_name"`
	PlayerRating  int    `json:"player_rating"`
	IconID        int    `json:"icon_id"`
	ExtraCol      int64  `json:"extra_col"`
	RankIndex     int64  `json:"rank_index"`
	RankText      string `json:"rankText"`
	RatingBand    string `json:"ratingBand"`
	RatingDisplay string `json:"ratingDisplay"`
}

// TierInfo describes the label a score maps to.
type TierInfo struct {
	Score    int64  `json:"score"`
	RankText string `json:"rankText"`
	Tier     string `json:"tier"`
	Sub      int    `json:"sub,omitempty"`
	Stars    int64  `json:"stars,omitempty"`
	NextAt   int64  `json:"next_at"`
}

// LadderStep is a label and the score at which it is first reached.
type LadderStep struct {
	RankText string `json:"rankText"`
	At       int64  `json:"at"`
}

// TierCount is the number of players currently in a tier.
type TierCount struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

// PlayerUpdate is an upstream write of one player's record.
type PlayerUpdate struct {
	UserID       int64  `json:"user_id"`
	UserName     string `json:"user_name"`
	PlayerRating int    `json:"player_rating"`
	IconID       int    `json:"icon_id"`
	ExtraCol     int64  `json:"extra_col"`
}

// UpsertResult reports the player's label before and after an upsert.
// Previous is empty for a new player.
type UpsertResult struct {
	UserID   int64  `json:"user_id"`
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current"`
	Changed  bool   `json:"changed"`
}

// TierChangedEvent is published when an upsert moves a player to a new label.
type TierChangedEvent struct {
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Promotion  bool      `json:"promotion"`
	OccurredAt time.Time `json:"occurred_at"`
}
