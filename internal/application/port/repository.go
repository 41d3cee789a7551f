package port

import (
	"context"

	"klinerelay/internal/domain/model"
)

// StateRepository 只保存每类数据的最新一条（覆盖写入，不保留历史）
type StateRepository interface {
	SaveTick(ctx context.Context, tick model.Tick) error
	SaveDecision(ctx context.Context, d model.Decision) error
	// LoadLatest 返回已保存的最新值，不存在时对应返回 nil
	LoadLatest(ctx context.Context) (*model.Tick, *model.Decision, error)

	// Connection management
	Close() error
}
