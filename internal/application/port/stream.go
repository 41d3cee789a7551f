package port

import (
	"context"

	"klinerelay/internal/domain/model"
)

// KlineStream 交易所 K 线流，Subscribe 返回的 channel 在 ctx 结束后关闭
type KlineStream interface {
	Name() string
	Subscribe(ctx context.Context) (<-chan model.Tick, error)
	Connected() bool
}
