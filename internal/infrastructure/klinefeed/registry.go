package klinefeed

import (
	"time"

	"klinerelay/internal/application/port"

	"github.com/rs/zerolog/log"
)

// Options K 线流的创建参数
type Options struct {
	URL           string // 完整的流地址；为空时由 BaseURL/Symbol/Interval 拼接
	BaseURL       string
	Symbol        string
	Interval      string
	FinalBarsOnly bool // 只转发已收盘的 K 线

	RetryInitial    time.Duration
	RetryMax        time.Duration
	RetryMultiplier float64
	ReadTimeout     time.Duration
	PingInterval    time.Duration
}

// factory函数类型
type Factory func(opts Options) (port.KlineStream, error)

// registry maps exchange names to their kline stream factories
var registry = make(map[string]Factory)

// Register 注册交易所的 K 线流 factory，由各交易所包的 init() 调用
func Register(exchangeName string, factory Factory) {
	if factory == nil {
		log.Warn().Str("exchange", exchangeName).Msg("invalid kline stream factory")
		return
	}
	if _, exists := registry[exchangeName]; exists {
		log.Warn().Str("exchange", exchangeName).Msg("kline stream factory already registered, overwriting")
	}
	registry[exchangeName] = factory
	log.Debug().Str("exchange", exchangeName).Msg("kline stream factory registered")
}

// Get 获取已注册的 K 线流 factory
func Get(exchangeName string) (Factory, bool) {
	factory, ok := registry[exchangeName]
	return factory, ok
}
