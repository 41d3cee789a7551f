package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
)

// Sink 在终端覆盖打印一行实时状态（不换行）
type Sink struct {
	mu        sync.Mutex
	out       io.Writer
	tick      *model.Tick
	prevClose float64
	decision  *model.Decision
}

func NewSink() *Sink { return NewSinkTo(os.Stdout) }

func NewSinkTo(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) PublishTick(ctx context.Context, tick model.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tick != nil {
		s.prevClose = s.tick.Close
	}
	s.tick = &tick
	return s.writeLive()
}

func (s *Sink) PublishDecision(ctx context.Context, d model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = &d
	return s.writeLive()
}

func (s *Sink) writeLive() error {
	_, err := fmt.Fprint(s.out, RenderLine(s.tick, s.prevClose, s.decision)) // no newline
	return err
}

// NewLine 退出前换行，避免覆盖最后一行
func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, "\n")
	return err
}

var _ port.Broadcaster = (*Sink)(nil)
