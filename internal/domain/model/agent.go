package model

import (
	"bytes"
	"encoding/json"
)

// ========== Agent Models ==========

// AgentResponse 决策代理对单个 Tick 的响应
type AgentResponse struct {
	Trades  []TradeEvent  `json:"trades"`
	Account *AccountState `json:"account"`
	Debug   StrategyDebug `json:"debug"`
}

// TradeEvent 代理撮合产生的成交事件，按时间顺序排列
type TradeEvent struct {
	ID                string        `json:"id"`
	Symbol            string        `json:"symbol"`
	Side              string        `json:"side"`
	Price             float64       `json:"price"`
	Volume            float64       `json:"volume"`
	RealizedPnl       float64       `json:"realizedPnl"`
	BalanceAfter      float64       `json:"balanceAfter"`
	PositionSizeAfter float64       `json:"positionSizeAfter"`
	Timestamp         LocalDateTime `json:"timestamp"`
	Reason            *string       `json:"reason,omitempty"`
}

// AccountState 代理侧的账户与持仓状态
type AccountState struct {
	Balance          float64        `json:"balance"`
	Equity           float64        `json:"equity"`
	PositionSide     *string        `json:"position_side"`
	PositionSize     float64        `json:"position_size"`
	AvgEntryPrice    float64        `json:"avg_entry_price"`
	LastPrice        *float64       `json:"last_price"`
	UpdatedAt        LocalDateTime  `json:"updated_at"`
	RealizedPnl      float64        `json:"realized_pnl"`
	PositionOpenTime *LocalDateTime `json:"position_open_time"`
	TakeProfitPrice  *float64       `json:"take_profit_price"`
	StopLossPrice    *float64       `json:"stop_loss_price"`
	PositionNotional *float64       `json:"position_notional"`
}

const (
	debugStrategyAction = "strategy_action"
	debugStrategyReason = "strategy_reason"
)

// StrategyDebug debug 字段中策略相关的可选项，其余键保留在 Extra
type StrategyDebug struct {
	StrategyAction *string
	StrategyReason *string
	Extra          map[string]json.RawMessage
}

func (d *StrategyDebug) UnmarshalJSON(b []byte) error {
	*d = StrategyDebug{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case debugStrategyAction:
			d.StrategyAction = debugString(v)
		case debugStrategyReason:
			d.StrategyReason = debugString(v)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[k] = v
		}
	}
	return nil
}

func (d StrategyDebug) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.StrategyAction != nil {
		out[debugStrategyAction] = *d.StrategyAction
	}
	if d.StrategyReason != nil {
		out[debugStrategyReason] = *d.StrategyReason
	}
	return json.Marshal(out)
}

// debugString 取值的字符串形式：字符串原样返回，其它类型使用其 JSON 文本，null 视为不存在
func debugString(v json.RawMessage) *string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return &s
	}
	s = string(v)
	return &s
}
