package binance

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"klinerelay/internal/domain/model"
)

// DecodeKline 解码一条原始 K 线消息，解码失败时返回错误
func DecodeKline(b []byte) (*model.KlineEnvelope, error) {
	var msg model.KlineEnvelope
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ParseKline 将原始消息转换为 Tick
// 格式错误的消息记录日志后丢弃；没有 k 字段的消息（非 K 线事件）静默丢弃
func ParseKline(b []byte) (model.Tick, bool) {
	msg, err := DecodeKline(b)
	if err != nil {
		log.Warn().Err(err).Str("payload", truncate(b, 256)).Msg("kline decode failed")
		return model.Tick{}, false
	}
	if msg.Kline == nil {
		return model.Tick{}, false
	}
	return KlineToTick(msg.Kline), true
}

// KlineToTick 数值字段解析失败（含空串）时取 0
func KlineToTick(k *model.Kline) model.Tick {
	return model.Tick{
		Symbol:    k.Symbol,
		Timestamp: model.FromEpochMilli(k.CloseTime),
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
