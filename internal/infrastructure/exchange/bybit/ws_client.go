package bybit

import (
	"context"
	"encoding/json"
	"errors"
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
	ExchangeName   = "BYBIT"
	DefaultBaseURL = "wss://stream.bybit.com/v5/public/linear"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultPingInterval = 20 * time.Second
	dialTimeout         = 10 * time.Second
)

// KlineStream Bybit v5 公共 K 线流
type KlineStream struct {
	wsURL         string
	topic         string
	finalBarsOnly bool
	retry         wsretry.RetryConfig
	readTimeout   time.Duration
	pingInterval  time.Duration
	dialer        *websocket.Dialer

	subscribed atomic.Bool
	connected  atomic.Bool
	reconnects atomic.Int64
}

func NewKlineStream(opts klinefeed.Options) (*KlineStream, error) {
	wsURL := strings.TrimSpace(opts.URL)
	if wsURL == "" {
		wsURL = strings.TrimSpace(opts.BaseURL)
	}
	if wsURL == "" {
		wsURL = DefaultBaseURL
	}
	topic, err := Topic(opts.Symbol, opts.Interval)
	if err != nil {
		return nil, err
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
		topic:         topic,
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

func (s *KlineStream) URL() string   { return s.wsURL }
func (s *KlineStream) Topic() string { return s.topic }

func (s *KlineStream) Connected() bool   { return s.connected.Load() }
func (s *KlineStream) Reconnects() int64 { return s.reconnects.Load() }

func (s *KlineStream) Subscribe(ctx context.Context) (<-chan model.Tick, error) {
	if !s.subscribed.CompareAndSwap(false, true) {
		return nil, errors.New("bybit kline stream already subscribed")
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

		// subscribe
		if err := conn.WriteJSON(subReq{Op: "subscribe", Args: []string{s.topic}}); err != nil {
			_ = conn.Close()
			delay := backoff.Next()
			log.Error().Str("feed", s.Name()).Err(err).Dur("retry_in", delay).Msg("subscribe failed")
			if wsretry.Sleep(ctx, delay) != nil {
				return
			}
			continue
		}

		backoff.Reset()
		s.connected.Store(true)
		log.Info().Str("feed", s.Name()).Str("topic", s.topic).Msg("ws connected & subscribed")

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
	var msg klineMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		log.Warn().Str("feed", s.Name()).Err(err).Str("payload", truncate(b, 256)).Msg("kline decode failed")
		return
	}

	// ack / pong
	if msg.Success != nil {
		if !*msg.Success {
			log.Error().Str("feed", s.Name()).Str("op", msg.Op).Str("ret_msg", msg.RetMsg).Msg("request not success")
		}
		return
	}
	if !strings.HasPrefix(msg.Topic, "kline.") || len(msg.Data) == 0 {
		return
	}

	sym := topicSymbol(msg.Topic)
	for _, k := range msg.Data {
		if s.finalBarsOnly && !k.Confirm {
			continue
		}
		select {
		case out <- itemToTick(sym, k):
		case <-ctx.Done():
			return
		}
	}
}

func (s *KlineStream) readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

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
			// Bybit 需要应用层心跳
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(subReq{Op: "ping"}); err != nil {
				return err
			}
		}
	}
}
