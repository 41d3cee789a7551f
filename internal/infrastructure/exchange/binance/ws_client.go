package binance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"klinerelay/internal/domain/model"
	"klinerelay/internal/infrastructure/klinefeed"
	wsretry "klinerelay/internal/infrastructure/websocket"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	ExchangeName   = "BINANCE"
	DefaultBaseURL = "wss://stream.binance.com:9443"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultPingInterval = 25 * time.Second
	dialTimeout         = 10 * time.Second
)

// KlineStream Binance K 线流：单连接、按到达顺序转发，断线后按退避策略无限重连
type KlineStream struct {
	wsURL         string
	finalBarsOnly bool
	retry         wsretry.RetryConfig
	readTimeout   time.Duration
	pingInterval  time.Duration
	dialer        *websocket.Dialer

	subscribed atomic.Bool
	connected  atomic.Bool
	reconnects atomic.Int64
}

// NewKlineStream 根据配置创建 K 线流；URL 为空时使用 BaseURL/Symbol/Interval 拼接
func NewKlineStream(opts klinefeed.Options) (*KlineStream, error) {
	wsURL := strings.TrimSpace(opts.URL)
	if wsURL == "" {
		base := opts.BaseURL
		if strings.TrimSpace(base) == "" {
			base = DefaultBaseURL
		}
		u, err := BuildKlineURL(base, opts.Symbol, opts.Interval)
		if err != nil {
			return nil, err
		}
		wsURL = u
	}

	retry := wsretry.DefaultRetryConfig
	if opts.RetryInitial > 0 || opts.RetryMax > 0 || opts.RetryMultiplier > 0 {
		retry = wsretry.RetryConfig{
			InitialDelay: opts.RetryInitial,
			MaxDelay:     opts.RetryMax,
			Multiplier:   opts.RetryMultiplier,
		}
	}

	s := &KlineStream{
		wsURL:         wsURL,
		finalBarsOnly: opts.FinalBarsOnly,
		retry:         retry,
		readTimeout:   opts.ReadTimeout,
		pingInterval:  opts.PingInterval,
		dialer:        websocket.DefaultDialer,
	}
	if s.readTimeout <= 0 {
		s.readTimeout = defaultReadTimeout
	}
	if s.pingInterval <= 0 {
		s.pingInterval = defaultPingInterval
	}
	return s, nil
}

func (s *KlineStream) Name() string { return ExchangeName }

func (s *KlineStream) URL() string { return s.wsURL }

// Connected 当前是否持有活动连接
func (s *KlineStream) Connected() bool { return s.connected.Load() }

// Reconnects 建立连接后又断开的次数
func (s *KlineStream) Reconnects() int64 { return s.reconnects.Load() }

// BuildKlineURL e.g. wss://stream.binance.com:9443/ws/btcusdt@kline_1m
func BuildKlineURL(base, symbol, interval string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("binance stream base url empty")
	}
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", errors.New("symbol empty")
	}
	interval = strings.TrimSpace(interval)
	if interval == "" {
		interval = "1m"
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = fmt.Sprintf("/ws/%s@kline_%s", symbol, interval)
	u.RawQuery = ""
	return u.String(), nil
}

// Subscribe 只允许调用一次；返回的 channel 在 ctx 结束后关闭
func (s *KlineStream) Subscribe(ctx context.Context) (<-chan model.Tick, error) {
	if !s.subscribed.CompareAndSwap(false, true) {
		return nil, errors.New("binance kline stream already subscribed")
	}
	out := make(chan model.Tick, 1024)
	go s.run(ctx, out)
	return out, nil
}

func (s *KlineStream) run(ctx context.Context, out chan<- model.Tick) {
	defer close(out)

	backoff := s.retry.NewBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		log.Warn().Str("feed", s.Name()).Str("url", s.wsURL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, _, err := s.dialer.DialContext(cctx, s.wsURL, nil)
		cancel()
		if err != nil {
			delay := backoff.Next()
			log.Error().Str("feed", s.Name()).Err(err).Dur("retry_in", delay).Msg("ws dial failed")
			if wsretry.Sleep(ctx, delay) != nil {
				return
			}
			continue
		}

		backoff.Reset()
		s.connected.Store(true)
		log.Info().Str("feed", s.Name()).Msg("ws connected")

		err = s.readLoop(ctx, conn, func(b []byte) {
			s.handleFrame(ctx, b, out)
		})

		_ = conn.Close()
		s.connected.Store(false)

		if ctx.Err() != nil {
			return
		}

		s.reconnects.Add(1)
		delay := backoff.Next()
		log.Warn().Str("feed", s.Name()).Err(err).Dur("retry_in", delay).Msg("ws disconnected, reconnecting")
		if wsretry.Sleep(ctx, delay) != nil {
			return
		}
	}
}

func (s *KlineStream) handleFrame(ctx context.Context, b []byte, out chan<- model.Tick) {
	msg, err := DecodeKline(b)
	if err != nil {
		log.Warn().Str("feed", s.Name()).Err(err).Str("payload", truncate(b, 256)).Msg("kline decode failed")
		return
	}
	if msg.Kline == nil {
		return
	}
	if s.finalBarsOnly && !msg.Kline.FinalBar {
		return
	}

	select {
	case out <- KlineToTick(msg.Kline):
	case <-ctx.Done():
	}
}

func (s *KlineStream) readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	// 返回前关闭连接并等待读协程退出，run 关闭 out 后不会再有发送
	defer func() {
		_ = conn.Close()
		for range errCh {
		}
	}()
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}
