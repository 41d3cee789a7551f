package relay

import (
	"context"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
)

type noopRepo struct{}

func NewNoopRepo() port.StateRepository { return &noopRepo{} }

func (n *noopRepo) SaveTick(ctx context.Context, tick model.Tick) error {
	return nil
}
func (n *noopRepo) SaveDecision(ctx context.Context, d model.Decision) error {
	return nil
}
func (n *noopRepo) LoadLatest(ctx context.Context) (*model.Tick, *model.Decision, error) {
	return nil, nil, nil
}
func (n *noopRepo) Close() error { return nil }

type noopBroadcaster struct{}

func (noopBroadcaster) PublishTick(ctx context.Context, tick model.Tick) error     { return nil }
func (noopBroadcaster) PublishDecision(ctx context.Context, d model.Decision) error { return nil }
