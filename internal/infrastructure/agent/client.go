package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
	"klinerelay/internal/infrastructure/trace"
)

const (
	onTickPath = "/api/agent/on-tick"

	defaultTimeout        = 5 * time.Second
	defaultConnectTimeout = 3 * time.Second
	maxErrorBody          = 4096
)

// ErrAgentStatus 代理返回非 2xx 状态码
var ErrAgentStatus = errors.New("agent http error")

// StatusError 携带状态码与响应体，便于排查
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent http error: status=%d body=%s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrAgentStatus }

type Config struct {
	BaseURL        string
	Timeout        time.Duration // 整体响应超时
	ConnectTimeout time.Duration
	MaxRPS         float64 // 0 表示不限速
}

// Client 决策代理 HTTP 客户端；每个 Tick 一次请求，失败只记录日志
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext

	c := &Client{
		http:    &http.Client{Timeout: timeout, Transport: transport},
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout: timeout,
	}
	if cfg.MaxRPS > 0 {
		burst := int(cfg.MaxRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}
	return c
}

// OnTick 发送 Tick 并返回代理响应；超时、HTTP 错误或网络错误时 ok=false
func (c *Client) OnTick(ctx context.Context, tick model.Tick) (model.AgentResponse, bool) {
	reqID := uuid.NewString()

	ctx, span := trace.StartSpan(ctx, "agent.on_tick")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", tick.Symbol),
		attribute.String("request_id", reqID),
	)

	resp, err := c.Send(ctx, reqID, tick)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		ev := log.Error().Err(err).Str("request_id", reqID).Str("symbol", tick.Symbol).Float64("close", tick.Close)
		var se *StatusError
		if errors.As(err, &se) {
			ev = ev.Int("status", se.Status).Str("body", se.Body)
		}
		if id := trace.TraceID(ctx); id != "" {
			ev = ev.Str("trace_id", id)
		}
		ev.Msg("failed to get decision from agent")
		return model.AgentResponse{}, false
	}
	return resp, true
}

// Send 发送单次请求并返回错误，不做重试
func (c *Client) Send(ctx context.Context, reqID string, tick model.Tick) (model.AgentResponse, error) {
	var out model.AgentResponse

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, fmt.Errorf("rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := json.Marshal(tick)
	if err != nil {
		return out, fmt.Errorf("marshal tick: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+onTickPath, bytes.NewReader(b))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)

	log.Debug().Str("request_id", reqID).Str("symbol", tick.Symbol).Float64("close", tick.Close).Msg("sending tick to agent")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return out, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}

	log.Debug().
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Int("trades", len(out.Trades)).
		Dur("latency", time.Since(start)).
		Msg("received decision from agent")
	return out, nil
}

var _ port.Agent = (*Client)(nil)
