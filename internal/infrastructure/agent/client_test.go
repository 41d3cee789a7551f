package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinerelay/internal/domain/model"
	"klinerelay/internal/infrastructure/trace"
)

func sampleTick() model.Tick {
	return model.Tick{
		Symbol:    "BTCUSDT",
		Timestamp: model.FromEpochMilli(1700000059999),
		Open:      1, High: 2, Low: 0.5, Close: 1.5, Volume: 10,
	}
}

func TestOnTickSuccess(t *testing.T) {
	var gotBody map[string]any
	var gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/agent/on-tick", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotReqID = r.Header.Get("X-Request-Id")

		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trades":[{"symbol":"BTCUSDT","price":1.5,"volume":0.1,"side":"BUY"}],
			"account":{"balance":990,"equity":1000},"debug":{"strategy_action":"BUY"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Timeout: time.Second})
	resp, ok := c.OnTick(context.Background(), sampleTick())
	require.True(t, ok)

	require.Len(t, resp.Trades, 1)
	assert.Equal(t, 0.1, resp.Trades[0].Volume)
	require.NotNil(t, resp.Account)
	assert.Equal(t, 990.0, resp.Account.Balance)
	require.NotNil(t, resp.Debug.StrategyAction)
	assert.Equal(t, "BUY", *resp.Debug.StrategyAction)

	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "BTCUSDT", gotBody["symbol"])
	assert.Equal(t, 1.5, gotBody["close"])
	for _, k := range []string{"timestamp", "open", "high", "low", "volume"} {
		assert.Contains(t, gotBody, k)
	}
}

func TestOnTickHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "strategy exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})

	_, ok := c.OnTick(context.Background(), sampleTick())
	assert.False(t, ok)

	_, err := c.Send(context.Background(), "req-1", sampleTick())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAgentStatus))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Contains(t, se.Body, "strategy exploded")
}

func TestOnTickTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, ok := c.OnTick(context.Background(), sampleTick())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOnTickMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trades":`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, ok := c.OnTick(context.Background(), sampleTick())
	assert.False(t, ok)
}

func TestOnTickConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second, ConnectTimeout: 100 * time.Millisecond})
	_, ok := c.OnTick(context.Background(), sampleTick())
	assert.False(t, ok)
}

func TestRateLimiterRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second, MaxRPS: 0.5})
	_, ok := c.OnTick(context.Background(), sampleTick())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, "req-2", sampleTick())
	assert.Error(t, err)
}

func TestOnTickFailureLogsTraceID(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	require.NoError(t, trace.Init(true))
	defer func() {
		_ = trace.Shutdown(context.Background())
		_ = trace.Init(false)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, ok := c.OnTick(context.Background(), sampleTick())
	require.False(t, ok)

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]any
		require.NoError(t, json.Unmarshal(line, &e))
		if e["message"] == "failed to get decision from agent" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.EqualValues(t, http.StatusBadGateway, entry["status"])
	assert.NotEmpty(t, entry["trace_id"])
}

