package model

// ========== Market Models ==========

// Tick 一根K线的归一化快照（收盘价、成交量等）
type Tick struct {
	Symbol    string        `json:"symbol"`
	Timestamp LocalDateTime `json:"timestamp"` // K线收盘时间（本地时区）
	Open      float64       `json:"open"`
	High      float64       `json:"high"`
	Low       float64       `json:"low"`
	Close     float64       `json:"close"`
	Volume    float64       `json:"volume"`
}

// KlineEnvelope 交易所推送的原始 K 线消息
type KlineEnvelope struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     *Kline `json:"k"`
}

// Kline 交易所原生 K 线，价格与成交量均为字符串
type Kline struct {
	StartTime int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	FinalBar  bool   `json:"x"` // 该周期是否已收盘
}
