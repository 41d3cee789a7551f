package broadcast

import (
	"context"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
)

// Composite 依次推送到所有 Broadcaster，返回第一个错误
type Composite struct {
	sinks []port.Broadcaster
}

func New(sinks ...port.Broadcaster) *Composite {
	// nil sinks are allowed; filter in constructor for safety
	out := make([]port.Broadcaster, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Composite{sinks: out}
}

func (c *Composite) Len() int { return len(c.sinks) }

func (c *Composite) PublishTick(ctx context.Context, tick model.Tick) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.PublishTick(ctx, tick); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Composite) PublishDecision(ctx context.Context, d model.Decision) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.PublishDecision(ctx, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Broadcaster = (*Composite)(nil)
