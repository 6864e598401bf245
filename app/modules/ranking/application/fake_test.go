package rankingservice

import (
	"context"
	"sync"

	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Player Repo
// ------------------------

type FakePlayerRepo struct {
	trace []string

	ListRankedFunc   func(ctx context.Context, db bun.IDB, sort playerdb.Sort, limit, offset int) ([]playerdb.RankedPlayer, error)
	SearchRankedFunc func(ctx context.Context, db bun.IDB, sort playerdb.Sort, keyword string) ([]playerdb.RankedPlayer, error)
	UpsertFunc       func(ctx context.Context, db bun.IDB, player *playerdb.Player) error
	GetByIDFunc      func(ctx context.Context, db bun.IDB, userID int64) (*playerdb.Player, error)
	ListScoresFunc   func(ctx context.Context, db bun.IDB) ([]int64, error)
	CountFunc        func(ctx context.Context, db bun.IDB) (int, error)
}

func NewFakePlayerRepo() *FakePlayerRepo {
	return &FakePlayerRepo{
		trace: []string{},
	}
}

func (f *FakePlayerRepo) record(step string) {
	f.trace = append(f.trace, step)
}

// --- Repository Interface Implementation ---

func (f *FakePlayerRepo) ListRanked(ctx context.Context, db bun.IDB, sort playerdb.Sort, limit, offset int) ([]playerdb.RankedPlayer, error) {
	f.record("ListRanked")
	if f.ListRankedFunc != nil {
		return f.ListRankedFunc(ctx, db, sort, limit, offset)
	}
	return nil, nil
}

func (f *FakePlayerRepo) SearchRanked(ctx context.Context, db bun.IDB, sort playerdb.Sort, keyword string) ([]playerdb.RankedPlayer, error) {
	f.record("SearchRanked")
	if f.SearchRankedFunc != nil {
		return f.SearchRankedFunc(ctx, db, sort, keyword)
	}
	return nil, nil
}

func (f *FakePlayerRepo) Upsert(ctx context.Context, db bun.IDB, player *playerdb.Player) error {
	f.record("Upsert")
	if f.UpsertFunc != nil {
		return f.UpsertFunc(ctx, db, player)
	}
	return nil
}

func (f *FakePlayerRepo) GetByID(ctx context.Context, db bun.IDB, userID int64) (*playerdb.Player, error) {
	f.record("GetByID")
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, db, userID)
	}
	return nil, playerdb.ErrNotFound
}

func (f *FakePlayerRepo) ListScores(ctx context.Context, db bun.IDB) ([]int64, error) {
	f.record("ListScores")
	if f.ListScoresFunc != nil {
		return f.ListScoresFunc(ctx, db)
	}
	return nil, nil
}

func (f *FakePlayerRepo) Count(ctx context.Context, db bun.IDB) (int, error) {
	f.record("Count")
	if f.CountFunc != nil {
		return f.CountFunc(ctx, db)
	}
	return 0, nil
}

// --- Accessors for assertions ---

func (f *FakePlayerRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Ensure the fake actually satisfies the interface
var _ playerdb.Repository = (*FakePlayerRepo)(nil)

// ------------------------
// Fake Publisher
// ------------------------

type FakePublisher struct {
	mu        sync.Mutex
	published map[string][]*message.Message

	PublishFunc func(topic string, messages ...*message.Message) error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{published: map[string][]*message.Message{}}
}

func (p *FakePublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	p.published[topic] = append(p.published[topic], messages...)
	p.mu.Unlock()
	if p.PublishFunc != nil {
		return p.PublishFunc(topic, messages...)
	}
	return nil
}

func (p *FakePublisher) Close() error { return nil }

func (p *FakePublisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.published[topic]...)
}

var _ message.Publisher = (*FakePublisher)(nil)
