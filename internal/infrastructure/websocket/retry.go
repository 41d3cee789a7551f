package websocket

import (
	"context"
	"time"
)

// RetryConfig WebSocket 重连退避配置
// InitialDelay 为 0 时表示立即重连（不退避）
type RetryConfig struct {
	InitialDelay time.Duration // 初始延迟
	MaxDelay     time.Duration // 最大延迟
	Multiplier   float64       // 每次失败后的延迟倍数
}

// DefaultRetryConfig 默认重连配置
var DefaultRetryConfig = RetryConfig{
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2,
}

// Backoff 指数退避状态，非并发安全
type Backoff struct {
	cfg  RetryConfig
	next time.Duration
}

func (c RetryConfig) NewBackoff() *Backoff {
	if c.Multiplier < 1 {
		c.Multiplier = 1
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	return &Backoff{cfg: c, next: c.InitialDelay}
}

// Next 返回本次应等待的时长，并推进到下一次
func (b *Backoff) Next() time.Duration {
	d := b.next
	n := time.Duration(float64(b.next) * b.cfg.Multiplier)
	if n > b.cfg.MaxDelay {
		n = b.cfg.MaxDelay
	}
	b.next = n
	return d
}

// Reset 连接成功后重置延迟
func (b *Backoff) Reset() {
	b.next = b.cfg.InitialDelay
}

// Sleep 等待 d，ctx 结束时提前返回 ctx.Err()
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
