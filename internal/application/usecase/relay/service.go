package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
	dsvc "klinerelay/internal/domain/service"
)

type ServiceDeps struct {
	Stream      port.KlineStream
	Agent       port.Agent
	Broadcaster port.Broadcaster
	Repo        port.StateRepository
	State       *State

	// Symbol 非空时只处理该交易对的 Tick
	Symbol         string
	InitialBalance float64
	// DiscardStaleDecisions 丢弃比当前 Decision 更早的 Tick 触发的代理响应
	DiscardStaleDecisions bool
}

// Service 行情 -> 代理 -> 决策 的转发管道
type Service struct {
	deps   ServiceDeps
	symbol string

	seq      atomic.Uint64
	inflight sync.WaitGroup
}

func NewService(deps ServiceDeps) *Service {
	if deps.State == nil {
		deps.State = NewState()
	}
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = noopBroadcaster{}
	}
	return &Service{
		deps:   deps,
		symbol: strings.ToUpper(strings.TrimSpace(deps.Symbol)),
	}
}

func (s *Service) State() *State { return s.deps.State }

func (s *Service) LatestTick() (model.Tick, bool) { return s.deps.State.Tick() }

func (s *Service) LatestDecision() (model.Decision, bool) { return s.deps.State.Decision() }

// Connected 交易所流当前是否已连接
func (s *Service) Connected() bool {
	return s.deps.Stream != nil && s.deps.Stream.Connected()
}

// Run 订阅行情并逐条处理，直到 ctx 结束。单条处理失败不会中断循环
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Stream == nil {
		return errors.New("no kline stream")
	}
	if s.deps.Agent == nil {
		return errors.New("no agent")
	}

	ticks, err := s.deps.Stream.Subscribe(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("feed", s.deps.Stream.Name()).Str("symbol", s.symbol).Msg("relay started")

	defer s.inflight.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ticks:
			if !ok {
				return ctx.Err()
			}
			s.HandleTick(ctx, t)
		}
	}
}

// HandleTick 保存并广播 Tick，然后异步向代理请求决策，不阻塞后续 Tick
func (s *Service) HandleTick(ctx context.Context, t model.Tick) {
	if s.symbol != "" && !strings.EqualFold(t.Symbol, s.symbol) {
		log.Debug().Str("symbol", t.Symbol).Msg("tick dropped by symbol filter")
		return
	}

	seq := s.seq.Add(1)
	s.deps.State.SetTick(t)

	if err := s.deps.Broadcaster.PublishTick(ctx, t); err != nil {
		log.Warn().Err(err).Str("symbol", t.Symbol).Msg("publish tick failed")
	}
	if err := s.deps.Repo.SaveTick(ctx, t); err != nil {
		log.Warn().Err(err).Str("symbol", t.Symbol).Msg("save tick failed")
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.dispatch(ctx, seq, t)
	}()
}

func (s *Service) dispatch(ctx context.Context, seq uint64, t model.Tick) {
	resp, ok := s.deps.Agent.OnTick(ctx, t)
	if !ok {
		// 代理失败时保留上一个 Decision
		return
	}

	d := dsvc.ProjectDecision(resp, t, s.deps.InitialBalance)

	if s.deps.DiscardStaleDecisions {
		if !s.deps.State.SetDecisionIfNewer(seq, d) {
			log.Debug().Uint64("seq", seq).Str("symbol", t.Symbol).Msg("stale agent response discarded")
			return
		}
	} else {
		s.deps.State.SetDecision(d)
	}

	if err := s.deps.Broadcaster.PublishDecision(ctx, d); err != nil {
		log.Warn().Err(err).Msg("publish decision failed")
	}
	if err := s.deps.Repo.SaveDecision(ctx, d); err != nil {
		log.Warn().Err(err).Msg("save decision failed")
	}

	ev := log.Info().
		Uint64("seq", seq).
		Str("action", d.Action).
		Str("symbol", d.Symbol).
		Float64("balance", d.Balance).
		Float64("equity", d.Equity)
	if d.Quantity != nil {
		ev = ev.Float64("qty", *d.Quantity)
	}
	if d.Price != nil {
		ev = ev.Float64("price", *d.Price)
	}
	if d.RoiPct != nil {
		ev = ev.Float64("roi_pct", *d.RoiPct)
	}
	ev.Msg("agent decision")
}

// ForceUpdate 重新广播当前的 Tick 与 Decision（若存在）
func (s *Service) ForceUpdate(ctx context.Context) {
	if t, ok := s.deps.State.Tick(); ok {
		if err := s.deps.Broadcaster.PublishTick(ctx, t); err != nil {
			log.Warn().Err(err).Msg("force update: publish tick failed")
		}
	}
	if d, ok := s.deps.State.Decision(); ok {
		if err := s.deps.Broadcaster.PublishDecision(ctx, d); err != nil {
			log.Warn().Err(err).Msg("force update: publish decision failed")
		}
	}
}

// Restore 用仓储中保存的最新值初始化状态
func (s *Service) Restore(ctx context.Context) error {
	t, d, err := s.deps.Repo.LoadLatest(ctx)
	if err != nil {
		return err
	}
	if t != nil {
		s.deps.State.SetTick(*t)
	}
	if d != nil {
		s.deps.State.SetDecision(*d)
	}
	log.Info().Bool("tick", t != nil).Bool("decision", d != nil).Msg("state restored")
	return nil
}
