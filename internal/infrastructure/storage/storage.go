package storage

import (
	"encoding/json"
	"fmt"

	"klinerelay/internal/domain/model"
)

// 最新状态的种类，每种只保留一条
const (
	KindTick     = "tick"
	KindDecision = "decision"
)

// LatestRecord 一条最新状态记录：种类 + JSON 负载
type LatestRecord struct {
	Kind    string
	Payload string
}

func EncodeTick(t model.Tick) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode tick: %w", err)
	}
	return string(b), nil
}

func EncodeDecision(d model.Decision) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode decision: %w", err)
	}
	return string(b), nil
}

// DecodeLatest 将记录还原为 Tick / Decision，未知种类被忽略
func DecodeLatest(records []LatestRecord) (*model.Tick, *model.Decision, error) {
	var (
		tick     *model.Tick
		decision *model.Decision
	)
	for _, r := range records {
		switch r.Kind {
		case KindTick:
			var t model.Tick
			if err := json.Unmarshal([]byte(r.Payload), &t); err != nil {
				return nil, nil, fmt.Errorf("decode tick: %w", err)
			}
			tick = &t
		case KindDecision:
			var d model.Decision
			if err := json.Unmarshal([]byte(r.Payload), &d); err != nil {
				return nil, nil, fmt.Errorf("decode decision: %w", err)
			}
			decision = &d
		}
	}
	return tick, decision, nil
}
