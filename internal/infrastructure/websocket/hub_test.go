package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinerelay/internal/domain/model"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func TestHubPublishesToTopicSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	market := httptest.NewServer(hub.Handler(TopicMarket))
	defer market.Close()
	decision := httptest.NewServer(hub.Handler(TopicDecision))
	defer decision.Close()

	mc := dial(t, market)
	defer mc.Close()
	dc := dial(t, decision)
	defer dc.Close()

	require.Eventually(t, func() bool {
		return hub.Subscribers(TopicMarket) == 1 && hub.Subscribers(TopicDecision) == 1
	}, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.PublishTick(ctx, model.Tick{Symbol: "BTCUSDT", Close: 42}))
	require.NoError(t, hub.PublishDecision(ctx, model.Decision{Action: "BUY", Symbol: "BTCUSDT"}))

	_ = mc.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := mc.ReadMessage()
	require.NoError(t, err)
	var tick map[string]any
	require.NoError(t, json.Unmarshal(b, &tick))
	assert.Equal(t, "BTCUSDT", tick["symbol"])
	assert.Equal(t, 42.0, tick["close"])

	_ = dc.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err = dc.ReadMessage()
	require.NoError(t, err)
	var d map[string]any
	require.NoError(t, json.Unmarshal(b, &d))
	assert.Equal(t, "BUY", d["action"])
	assert.NotContains(t, d, "roiPct")
}

func TestHubRemovesClosedSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := httptest.NewServer(hub.Handler(TopicMarket))
	defer srv.Close()

	c := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers(TopicMarket) == 1 }, time.Second, 5*time.Millisecond)

	_ = c.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(TopicMarket) == 0 }, 2*time.Second, 5*time.Millisecond)

	assert.NoError(t, hub.PublishTick(context.Background(), model.Tick{Symbol: "BTCUSDT"}))
}
