package port

import (
	"context"

	"klinerelay/internal/domain/model"
)

// Broadcaster 向订阅者推送最新 Tick / Decision，尽力而为
type Broadcaster interface {
	PublishTick(ctx context.Context, tick model.Tick) error
	PublishDecision(ctx context.Context, d model.Decision) error
}
