package rankinghandlers

import (
	"context"

	rankingservice "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/application"
)

// FakeService is a programmable fake for rankingservice.Service.
type FakeService struct {
	trace []string

	ListPlayersFunc      func(ctx context.Context, q rankingservice.ListQuery) ([]rankingservice.PlayerView, error)
	TierLookupFunc       func(score int64) rankingservice.TierInfo
	LadderFunc           func() []rankingservice.LadderStep
	TierDistributionFunc func(ctx context.Context) ([]rankingservice.TierCount, error)
	TierChartFunc        func(ctx context.Context) ([]byte, error)
	ExportPlayersFunc    func(ctx context.Context, sort string) ([]byte, error)
	UpsertPlayerFunc     func(ctx context.Context, update rankingservice.PlayerUpdate) (*rankingservice.UpsertResult, error)
	ImportPlayersFunc    func(ctx context.Context, updates []rankingservice.PlayerUpdate) ([]rankingservice.UpsertResult, error)
}

func NewFakeService() *FakeService {
	return &FakeService{trace: []string{}}
}

func (f *FakeService) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeService) ListPlayers(ctx context.Context, q rankingservice.ListQuery) ([]rankingservice.PlayerView, error) {
	f.record("ListPlayers")
	if f.ListPlayersFunc != nil {
		return f.ListPlayersFunc(ctx, q)
	}
	return []rankingservice.PlayerView{}, nil
}

func (f *FakeService) TierLookup(score int64) rankingservice.TierInfo {
	f.record("TierLookup")
	if f.TierLookupFunc != nil {
		return f.TierLookupFunc(score)
	}
	return rankingservice.TierInfo{Score: score}
}

func (f *FakeService) Ladder() []rankingservice.LadderStep {
	f.record("Ladder")
	if f.LadderFunc != nil {
		return f.LadderFunc()
	}
	return nil
}

func (f *FakeService) TierDistribution(ctx context.Context) ([]rankingservice.TierCount, error) {
	f.record("TierDistribution")
	if f.TierDistributionFunc != nil {
		return f.TierDistributionFunc(ctx)
	}
	return nil, nil
}

func (f *FakeService) TierChart(ctx context.Context) ([]byte, error) {
	f.record("TierChart")
	if f.TierChartFunc != nil {
		return f.TierChartFunc(ctx)
	}
	return nil, nil
}

func (f *FakeService) ExportPlayers(ctx context.Context, sort string) ([]byte, error) {
	f.record("ExportPlayers")
	if f.ExportPlayersFunc != nil {
		return f.ExportPlayersFunc(ctx, sort)
	}
	return nil, nil
}

func (f *FakeService) UpsertPlayer(ctx context.Context, update rankingservice.PlayerUpdate) (*rankingservice.UpsertResult, error) {
	f.record("UpsertPlayer")
	if f.UpsertPlayerFunc != nil {
		return f.UpsertPlayerFunc(ctx, update)
	}
	return &rankingservice.UpsertResult{UserID: update.UserID}, nil
}

func (f *FakeService) ImportPlayers(ctx context.Context, updates []rankingservice.PlayerUpdate) ([]rankingservice.UpsertResult, error) {
	f.record("ImportPlayers")
	if f.ImportPlayersFunc != nil {
		return f.ImportPlayersFunc(ctx, updates)
	}
	return nil, nil
}

var _ rankingservice.Service = (*FakeService)(nil)
