package bybit

import (
	"klinerelay/internal/application/port"
	"klinerelay/internal/infrastructure/klinefeed"
)

// init() registers the Bybit kline stream factory
func init() {
	klinefeed.Register(ExchangeName, func(opts klinefeed.Options) (port.KlineStream, error) {
		return NewKlineStream(opts)
	})
}
