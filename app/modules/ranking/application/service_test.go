package rankingservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
	rankingmetrics "github.com/Black-And-White-Club/taco-rank/app/shared/observability/metrics/ranking"
	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/trace/noop"
)

var testRankingConfig = config.RankingConfig{
	PageSize:     20,
	WidenKeyword: true,
	RatingMask:   17000,
}

func newTestService(repo *FakePlayerRepo, pub message.Publisher) *RankingService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	svc := NewRankingService(repo, logger, rankingmetrics.NewNoop(), tracer, nil, pub, testRankingConfig)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestRankingService_ListPlayers(t *testing.T) {
	type call struct {
		sort    playerdb.Sort
		limit   int
		offset  int
		keyword string
	}

	tests := []struct {
		name      string
		query     ListQuery
		wantTrace []string
		wantCall  call
	}{
		{
			name:      "default page and sort",
			query:     ListQuery{},
			wantTrace: []string{"ListRanked"},
			wantCall:  call{sort: playerdb.SortRating, limit: 20, offset: 0},
		},
		{
			name:      "third page by rank",
			query:     ListQuery{Sort: "rank", Page: 3},
			wantTrace: []string{"ListRanked"},
			wantCall:  call{sort: playerdb.SortRank, limit: 20, offset: 40},
		},
		{
			name:      "negative page is first page",
			query:     ListQuery{Page: -4},
			wantTrace: []string{"ListRanked"},
			wantCall:  call{sort: playerdb.SortRating, limit: 20, offset: 0},
		},
		{
			name:      "unknown sort ranks by rating",
			query:     ListQuery{Sort: "name", Page: 2},
			wantTrace: []string{"ListRanked"},
			wantCall:  call{sort: playerdb.SortRating, limit: 20, offset: 20},
		},
		{
			name:      "huge page does not overflow",
			query:     ListQuery{Page: int(^uint(0) >> 1)},
			wantTrace: []string{"ListRanked"},
			wantCall:  call{sort: playerdb.SortRating, limit: 20, offset: (maxPage - 1) * 20},
		},
		{
			name:      "keyword searches widened and ignores page",
			query:     ListQuery{Sort: "rank", Keyword: " Taco1 ", Page: 5},
			wantTrace: []string{"SearchRanked"},
			wantCall:  call{sort: playerdb.SortRank, keyword: "Ｔａｃｏ１"},
		},
		{
			name:      "blank keyword pages",
			query:     ListQuery{Keyword: "   "},
			wantTrace: []string{"ListRanked"},
			wantCall:  call{sort: playerdb.SortRating, limit: 20, offset: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got call
			repo := NewFakePlayerRepo()
			repo.ListRankedFunc = func(ctx context.Context, db bun.IDB, sort playerdb.Sort, limit, offset int) ([]playerdb.RankedPlayer, error) {
				got = call{sort: sort, limit: limit, offset: offset}
				return nil, nil
			}
			repo.SearchRankedFunc = func(ctx context.Context, db bun.IDB, sort playerdb.Sort, keyword string) ([]playerdb.RankedPlayer, error) {
				got = call{sort: sort, keyword: keyword}
				return nil, nil
			}

			views, err := newTestService(repo, nil).ListPlayers(context.Background(), tt.query)
			require.NoError(t, err)
			assert.NotNil(t, views)
			assert.Empty(t, views)
			assert.Equal(t, tt.wantTrace, repo.Trace())
			assert.Equal(t, tt.wantCall, got)
		})
	}
}

func TestRankingService_ListPlayers_Views(t *testing.T) {
	repo := NewFakePlayerRepo()
	repo.ListRankedFunc = func(ctx context.Context, db bun.IDB, sort playerdb.Sort, limit, offset int) ([]playerdb.RankedPlayer, error) {
		return []playerdb.RankedPlayer{
			{UserID: 1, UserName: "Ｔａｃｏ", PlayerRating: 17001, IconID: 3, ExtraCol: 2225, RankIndex: 1},
			{UserID: 2, UserName: "bravo", PlayerRating: 15234, IconID: 4, ExtraCol: 575, RankIndex: 2},
			{UserID: 3, UserName: "charlie", PlayerRating: 900, ExtraCol: 0, RankIndex: 3},
		}, nil
	}

	views, err := newTestService(repo, nil).ListPlayers(context.Background(), ListQuery{Page: 1})
	require.NoError(t, err)

	want := []PlayerView{
		{UserName: "Ｔａｃｏ", PlayerRating: 17001, IconID: 3, ExtraCol: 2225, RankIndex: 1, RankText: "LEGEND ★2", RatingBand: "rainbow", RatingDisplay: "***"},
		{UserName: "bravo", PlayerRating: 15234, IconID: 4, ExtraCol: 575, RankIndex: 2, RankText: "A1", RatingBand: "rainbow", RatingDisplay: "15,234"},
		{UserName: "charlie", PlayerRating: 900, ExtraCol: 0, RankIndex: 3, RankText: "B5", RatingBand: "neutral", RatingDisplay: "900"},
	}
	assert.Equal(t, want, views)

	raw, err := json.Marshal(views[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_name":"bravo","player_rating":15234,"icon_id":4,"extra_col":575,"rank_index":2,"rankText":"A1","ratingBand":"rainbow","ratingDisplay":"15,234"}`, string(raw))
}

func TestRankingService_ListPlayers_Errors(t *testing.T) {
	t.Run("repository error", func(t *testing.T) {
		repo := NewFakePlayerRepo()
		repo.ListRankedFunc = func(ctx context.Context, db bun.IDB, sort playerdb.Sort, limit, offset int) ([]playerdb.RankedPlayer, error) {
			return nil, errors.New("connection refused")
		}
		_, err := newTestService(repo, nil).ListPlayers(context.Background(), ListQuery{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ListPlayers")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("panic is recovered", func(t *testing.T) {
		repo := NewFakePlayerRepo()
		repo.SearchRankedFunc = func(ctx context.Context, db bun.IDB, sort playerdb.Sort, keyword string) ([]playerdb.RankedPlayer, error) {
			panic("boom")
		}
		_, err := newTestService(repo, nil).ListPlayers(context.Background(), ListQuery{Keyword: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in ListPlayers")
	})
}

func TestRankingService_TierLookup(t *testing.T) {
	svc := newTestService(NewFakePlayerRepo(), nil)

	tests := []struct {
		score int64
		want  TierInfo
	}{
		{score: 0, want: TierInfo{Score: 0, RankText: "B5", Tier: "B", Sub: 5, NextAt: 50}},
		{score: -10, want: TierInfo{Score: -10, RankText: "B5", Tier: "B", Sub: 5, NextAt: 50}},
		{score: 575, want: TierInfo{Score: 575, RankText: "A1", Tier: "A", Sub: 1, NextAt: 625}},
		{score: 2124, want: TierInfo{Score: 2124, RankText: "SSS1", Tier: "SSS", Sub: 1, NextAt: 2125}},
		{score: 2125, want: TierInfo{Score: 2125, RankText: "LEGEND ★1", Tier: "LEGEND", Stars: 1, NextAt: 2225}},
		{score: 2400, want: TierInfo{Score: 2400, RankText: "LEGEND ★3", Tier: "LEGEND", Stars: 3, NextAt: 2425}},
		{score: math.MaxInt64, want: TierInfo{Score: math.MaxInt64, RankText: "LEGEND ★92233720368547737", Tier: "LEGEND", Stars: 92233720368547737, NextAt: math.MaxInt64}},
	}

	for _, tt := range tests {
		t.Run(tt.want.RankText, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.TierLookup(tt.score))
		})
	}
}

func TestRankingService_Ladder(t *testing.T) {
	steps := newTestService(NewFakePlayerRepo(), nil).Ladder()
	require.Len(t, steps, 26)
	assert.Equal(t, LadderStep{RankText: "B5", At: 0}, steps[0])
	assert.Equal(t, LadderStep{RankText: "A5", At: 250}, steps[5])
	assert.Equal(t, LadderStep{RankText: "LEGEND ★1", At: 2125}, steps[25])
}

func TestRankingService_TierDistribution(t *testing.T) {
	repo := NewFakePlayerRepo()
	repo.ListScoresFunc = func(ctx context.Context, db bun.IDB) ([]int64, error) {
		return []int64{0, 249, 250, 625, 1125, 1625, 2125, 99999}, nil
	}

	counts, err := newTestService(repo, nil).TierDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []TierCount{
		{Tier: "B", Count: 2},
		{Tier: "A", Count: 1},
		{Tier: "S", Count: 1},
		{Tier: "SS", Count: 1},
		{Tier: "SSS", Count: 1},
		{Tier: "LEGEND", Count: 2},
	}, counts)

	repo.ListScoresFunc = func(ctx context.Context, db bun.IDB) ([]int64, error) {
		return nil, errors.New("timeout")
	}
	_, err = newTestService(repo, nil).TierDistribution(context.Background())
	assert.Error(t, err)
}

func TestRankingService_TierChart(t *testing.T) {
	pngMagic := []byte("\x89PNG")

	tests := []struct {
		name   string
		scores []int64
	}{
		{name: "with players", scores: []int64{0, 300, 700, 2500}},
		{name: "equal counts", scores: []int64{0, 250, 625, 1125, 1625, 2125}},
		{name: "no players", scores: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewFakePlayerRepo()
			repo.ListScoresFunc = func(ctx context.Context, db bun.IDB) ([]int64, error) {
				return tt.scores, nil
			}
			png, err := newTestService(repo, nil).TierChart(context.Background())
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(png, pngMagic))
		})
	}
}

func TestRankingService_ExportPlayers(t *testing.T) {
	t.Run("writes ranked rows", func(t *testing.T) {
		repo := NewFakePlayerRepo()
		repo.CountFunc = func(ctx context.Context, db bun.IDB) (int, error) { return 2, nil }
		repo.ListRankedFunc = func(ctx context.Context, db bun.IDB, sort playerdb.Sort, limit, offset int) ([]playerdb.RankedPlayer, error) {
			assert.Equal(t, playerdb.SortRank, sort)
			assert.Equal(t, 2, limit)
			assert.Equal(t, 0, offset)
			return []playerdb.RankedPlayer{
				{UserID: 123456789012345678, UserName: "alpha", PlayerRating: 1000, IconID: 1, ExtraCol: 2125, RankIndex: 1},
				{UserID: 2, UserName: "bravo", PlayerRating: 500, IconID: 2, ExtraCol: 50, RankIndex: 2},
			}, nil
		}

		data, err := newTestService(repo, nil).ExportPlayers(context.Background(), "rank")
		require.NoError(t, err)

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{ExportSheet}, f.GetSheetList())
		rows, err := f.GetRows(ExportSheet)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"rank_index", "user_id", "user_name", "player_rating", "icon_id", "extra_col", "rankText"}, rows[0])
		assert.Equal(t, []string{"1", "123456789012345678", "alpha", "1000", "1", "2125", "LEGEND ★1"}, rows[1])
		assert.Equal(t, []string{"2", "2", "bravo", "500", "2", "50", "B4"}, rows[2])
	})

	t.Run("empty table writes header only", func(t *testing.T) {
		repo := NewFakePlayerRepo()
		data, err := newTestService(repo, nil).ExportPlayers(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{"Count"}, repo.Trace())

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(ExportSheet)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestRankingService_UpsertPlayer(t *testing.T) {
	existing := func(score int64) func(ctx context.Context, db bun.IDB, userID int64) (*playerdb.Player, error) {
		return func(ctx context.Context, db bun.IDB, userID int64) (*playerdb.Player, error) {
			return &playerdb.Player{UserID: userID, UserName: "old", ExtraCol: score}, nil
		}
	}

	tests := []struct {
		name       string
		update     PlayerUpdate
		setupRepo  func(*FakePlayerRepo)
		want       *UpsertResult
		wantEvent  *TierChangedEvent
		wantTrace  []string
		wantErr    bool
		wantField  string
		publishErr error
	}{
		{
			name:      "new player",
			update:    PlayerUpdate{UserID: 7, UserName: " taco ", ExtraCol: 625},
			setupRepo: func(f *FakePlayerRepo) {},
			want:      &UpsertResult{UserID: 7, Current: "S5"},
			wantTrace: []string{"GetByID", "Upsert"},
		},
		{
			name:   "promotion",
			update: PlayerUpdate{UserID: 7, UserName: "taco", ExtraCol: 250},
			setupRepo: func(f *FakePlayerRepo) {
				f.GetByIDFunc = existing(200)
			},
			want: &UpsertResult{UserID: 7, Previous: "B1", Current: "A5", Changed: true},
			wantEvent: &TierChangedEvent{
				UserID: 7, UserName: "taco", From: "B1", To: "A5", Promotion: true,
				OccurredAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
			},
			wantTrace: []string{"GetByID", "Upsert"},
		},
		{
			name:   "demotion",
			update: PlayerUpdate{UserID: 7, UserName: "taco", ExtraCol: 2124},
			setupRepo: func(f *FakePlayerRepo) {
				f.GetByIDFunc = existing(2125)
			},
			want: &UpsertResult{UserID: 7, Previous: "LEGEND ★1", Current: "SSS1", Changed: true},
			wantEvent: &TierChangedEvent{
				UserID: 7, UserName: "taco", From: "LEGEND ★1", To: "SSS1", Promotion: false,
				OccurredAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
			},
			wantTrace: []string{"GetByID", "Upsert"},
		},
		{
			name:   "same label",
			update: PlayerUpdate{UserID: 7, UserName: "taco", ExtraCol: 260},
			setupRepo: func(f *FakePlayerRepo) {
				f.GetByIDFunc = existing(250)
			},
			want:      &UpsertResult{UserID: 7, Previous: "A5", Current: "A5"},
			wantTrace: []string{"GetByID", "Upsert"},
		},
		{
			name:   "publish failure does not fail the write",
			update: PlayerUpdate{UserID: 7, UserName: "taco", ExtraCol: 50},
			setupRepo: func(f *FakePlayerRepo) {
				f.GetByIDFunc = existing(0)
			},
			want: &UpsertResult{UserID: 7, Previous: "B5", Current: "B4", Changed: true},
			wantEvent: &TierChangedEvent{
				UserID: 7, UserName: "taco", From: "B5", To: "B4", Promotion: true,
				OccurredAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
			},
			wantTrace:  []string{"GetByID", "Upsert"},
			publishErr: errors.New("bus closed"),
		},
		{
			name:      "invalid user id",
			update:    PlayerUpdate{UserID: 0, UserName: "taco"},
			setupRepo: func(f *FakePlayerRepo) {},
			wantTrace: []string{},
			wantErr:   true,
			wantField: "user_id",
		},
		{
			name:      "blank name",
			update:    PlayerUpdate{UserID: 1, UserName: "  "},
			setupRepo: func(f *FakePlayerRepo) {},
			wantTrace: []string{},
			wantErr:   true,
			wantField: "user_name",
		},
		{
			name:      "negative score",
			update:    PlayerUpdate{UserID: 1, UserName: "taco", ExtraCol: -1},
			setupRepo: func(f *FakePlayerRepo) {},
			wantTrace: []string{},
			wantErr:   true,
			wantField: "extra_col",
		},
		{
			name:   "lookup failure",
			update: PlayerUpdate{UserID: 1, UserName: "taco"},
			setupRepo: func(f *FakePlayerRepo) {
				f.GetByIDFunc = func(ctx context.Context, db bun.IDB, userID int64) (*playerdb.Player, error) {
					return nil, errors.New("db down")
				}
			},
			wantTrace: []string{"GetByID"},
			wantErr:   true,
		},
		{
			name:   "write failure",
			update: PlayerUpdate{UserID: 1, UserName: "taco"},
			setupRepo: func(f *FakePlayerRepo) {
				f.UpsertFunc = func(ctx context.Context, db bun.IDB, player *playerdb.Player) error {
					return errors.New("constraint violation")
				}
			},
			wantTrace: []string{"GetByID", "Upsert"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewFakePlayerRepo()
			tt.setupRepo(repo)
			var stored *playerdb.Player
			if repo.UpsertFunc == nil {
				repo.UpsertFunc = func(ctx context.Context, db bun.IDB, player *playerdb.Player) error {
					stored = player
					return nil
				}
			}
			pub := NewFakePublisher()
			if tt.publishErr != nil {
				pub.PublishFunc = func(topic string, messages ...*message.Message) error { return tt.publishErr }
			}

			ctx := attr.WithCorrelationID(context.Background(), "cid-42")
			got, err := newTestService(repo, pub).UpsertPlayer(ctx, tt.update)

			assert.Equal(t, tt.wantTrace, repo.Trace())
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantField != "" {
					var ve *ValidationError
					require.ErrorAs(t, err, &ve)
					assert.Equal(t, tt.wantField, ve.Field)
				}
				assert.Empty(t, pub.Messages(TierChangedV1))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NotNil(t, stored)
			assert.Equal(t, tt.update.ExtraCol, stored.ExtraCol)

			msgs := pub.Messages(TierChangedV1)
			if tt.wantEvent == nil {
				assert.Empty(t, msgs)
				return
			}
			require.Len(t, msgs, 1)
			assert.Equal(t, "cid-42", middleware.MessageCorrelationID(msgs[0]))
			var event TierChangedEvent
			require.NoError(t, json.Unmarshal(msgs[0].Payload, &event))
			assert.Equal(t, *tt.wantEvent, event)
		})
	}
}

func TestRankingService_UpsertPlayer_TrimsName(t *testing.T) {
	repo := NewFakePlayerRepo()
	var stored *playerdb.Player
	repo.UpsertFunc = func(ctx context.Context, db bun.IDB, player *playerdb.Player) error {
		stored = player
		return nil
	}
	_, err := newTestService(repo, nil).UpsertPlayer(context.Background(), PlayerUpdate{UserID: 1, UserName: " taco "})
	require.NoError(t, err)
	assert.Equal(t, "taco", stored.UserName)
}

func TestRankingService_ImportPlayers(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		repo := NewFakePlayerRepo()
		_, err := newTestService(repo, nil).ImportPlayers(context.Background(), nil)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "updates", ve.Field)
		assert.Empty(t, repo.Trace())
	})

	t.Run("one invalid row rejects all", func(t *testing.T) {
		repo := NewFakePlayerRepo()
		_, err := newTestService(repo, nil).ImportPlayers(context.Background(), []PlayerUpdate{
			{UserID: 1, UserName: "a"},
			{UserID: 2, UserName: ""},
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "updates[1].user_name", ve.Field)
		assert.Empty(t, repo.Trace())
	})

	t.Run("upserts every row and announces changes", func(t *testing.T) {
		repo := NewFakePlayerRepo()
		repo.GetByIDFunc = func(ctx context.Context, db bun.IDB, userID int64) (*playerdb.Player, error) {
			if userID == 2 {
				return &playerdb.Player{UserID: 2, UserName: "b", ExtraCol: 0}, nil
			}
			return nil, playerdb.ErrNotFound
		}
		pub := NewFakePublisher()

		got, err := newTestService(repo, pub).ImportPlayers(context.Background(), []PlayerUpdate{
			{UserID: 1, UserName: "a", ExtraCol: 100},
			{UserID: 2, UserName: "b", ExtraCol: 2125},
		})
		require.NoError(t, err)
		assert.Equal(t, []UpsertResult{
			{UserID: 1, Current: "B3"},
			{UserID: 2, Previous: "B5", Current: "LEGEND ★1", Changed: true},
		}, got)
		assert.Equal(t, []string{"GetByID", "Upsert", "GetByID", "Upsert"}, repo.Trace())
		assert.Len(t, pub.Messages(TierChangedV1), 1)
	})
}
