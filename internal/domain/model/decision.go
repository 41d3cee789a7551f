package model

// ActionHold 无策略信号也无成交时的默认动作
const ActionHold = "HOLD"

// Decision 面向 UI 的决策摘要，每次代理往返成功后整体替换
type Decision struct {
	Action           string         `json:"action"`
	Symbol           string         `json:"symbol"`
	Quantity         *float64       `json:"quantity,omitempty"`
	Price            *float64       `json:"price,omitempty"`
	Reason           *string        `json:"reason,omitempty"`
	Balance          float64        `json:"balance"`
	Equity           float64        `json:"equity"`
	RealizedPnl      *float64       `json:"realizedPnl,omitempty"`
	RoiPct           *float64       `json:"roiPct,omitempty"`
	PositionSide     *string        `json:"positionSide,omitempty"`
	PositionSize     *float64       `json:"positionSize,omitempty"`
	PositionOpenTime *LocalDateTime `json:"positionOpenTime,omitempty"`
	TakeProfitPrice  *float64       `json:"takeProfitPrice,omitempty"`
	StopLossPrice    *float64       `json:"stopLossPrice,omitempty"`
	PositionNotional *float64       `json:"positionNotional,omitempty"`
	AvgEntryPrice    *float64       `json:"avgEntryPrice,omitempty"`
}
