package port

import (
	"context"

	"klinerelay/internal/domain/model"
)

// Agent 外部决策代理。ok=false 表示本轮没有响应（失败已在内部记录）
type Agent interface {
	OnTick(ctx context.Context, tick model.Tick) (resp model.AgentResponse, ok bool)
}
