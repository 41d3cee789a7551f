package relay

import (
	"sync"

	"klinerelay/internal/domain/model"
)

// State 保存最新的一个 Tick 与一个 Decision，整体替换写入，支持并发读
type State struct {
	mu sync.RWMutex

	tick        *model.Tick
	decision    *model.Decision
	decisionSeq uint64
}

func NewState() *State {
	return &State{}
}

func (s *State) SetTick(t model.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = &t
}

// Tick 返回最新 Tick，尚未收到任何 Tick 时 ok=false
func (s *State) Tick() (model.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tick == nil {
		return model.Tick{}, false
	}
	return *s.tick, true
}

// SetDecision 无条件覆盖当前 Decision
func (s *State) SetDecision(d model.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = &d
}

// SetDecisionIfNewer 仅当 seq 不早于已保存 Decision 的序号时写入，返回是否写入
// 用于丢弃乱序返回的旧代理响应
func (s *State) SetDecisionIfNewer(seq uint64, d model.Decision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decision != nil && seq < s.decisionSeq {
		return false
	}
	s.decision = &d
	s.decisionSeq = seq
	return true
}

// Decision 返回最新 Decision，尚未产生时 ok=false
func (s *State) Decision() (model.Decision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.decision == nil {
		return model.Decision{}, false
	}
	return *s.decision, true
}
