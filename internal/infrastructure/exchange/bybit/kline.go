package bybit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"klinerelay/internal/domain/model"
)

type subReq struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

type klineItem struct {
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Open    string `json:"open"`
	Close   string `json:"close"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Volume  string `json:"volume"`
	Confirm bool   `json:"confirm"`
}

// data can be object OR array
type klineList []klineItem

func (d *klineList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*d = nil
		return nil
	}
	switch b[0] {
	case '[':
		var arr []klineItem
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		*d = arr
		return nil
	case '{':
		var one klineItem
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*d = klineList{one}
		return nil
	default:
		return fmt.Errorf("unexpected data json: %s", string(b))
	}
}

type klineMsg struct {
	Topic string    `json:"topic"`
	Type  string    `json:"type"`
	Ts    int64     `json:"ts"`
	Data  klineList `json:"data"`

	Success *bool  `json:"success,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
	Op      string `json:"op,omitempty"`
}

var intervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W", "1M": "M",
}

// Interval 将通用周期 (1m, 1h, 1d ...) 转换为 Bybit 周期；已是 Bybit 格式的原样返回
func Interval(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "1", nil
	}
	if v, ok := intervals[s]; ok {
		return v, nil
	}
	for _, v := range intervals {
		if v == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unsupported bybit interval %q", s)
}

// Topic e.g. kline.1.BTCUSDT
func Topic(symbol, interval string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol empty")
	}
	iv, err := Interval(interval)
	if err != nil {
		return "", err
	}
	return "kline." + iv + "." + symbol, nil
}

func topicSymbol(topic string) string {
	i := strings.LastIndexByte(topic, '.')
	if i < 0 {
		return ""
	}
	return topic[i+1:]
}

func itemToTick(symbol string, k klineItem) model.Tick {
	return model.Tick{
		Symbol:    symbol,
		Timestamp: model.FromEpochMilli(k.End),
		Open:      parseFloat(k.Open),
		High:      parseFloat(k.High),
		Low:       parseFloat(k.Low),
		Close:     parseFloat(k.Close),
		Volume:    parseFloat(k.Volume),
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
