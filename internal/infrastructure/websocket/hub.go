package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"klinerelay/internal/application/port"
	"klinerelay/internal/domain/model"
)

// 订阅主题
const (
	TopicMarket   = "market"
	TopicDecision = "decision"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = 25 * time.Second
)

type subscriber struct {
	topic string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub 将 Tick / Decision 以 JSON 推送给 WebSocket 订阅者
// 发送缓冲已满的慢订阅者会被断开，不阻塞发布方
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Handler 返回订阅指定主题的 HTTP 升级处理器
func (h *Hub) Handler(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("ws upgrade failed")
			return
		}
		s := &subscriber{topic: topic, conn: conn, send: make(chan []byte, sendBuffer)}

		h.mu.Lock()
		h.subs[s] = struct{}{}
		n := len(h.subs)
		h.mu.Unlock()
		log.Info().Str("topic", topic).Str("remote", r.RemoteAddr).Int("subscribers", n).Msg("subscriber joined")

		go h.writePump(s)
		h.readPump(s)
	}
}

// Subscribers 指定主题当前的订阅者数量
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for s := range h.subs {
		if s.topic == topic {
			n++
		}
	}
	return n
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if ok {
		s.close()
	}
}

// readPump 只用于感知断开与处理 pong，订阅者发来的内容被忽略
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.remove(s)
		_ = s.conn.Close()
	}()
	_ = s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish 向主题的所有订阅者推送 v 的 JSON 编码
func (h *Hub) Publish(topic string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var slow []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		if s.topic != topic {
			continue
		}
		select {
		case s.send <- b:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		log.Warn().Str("topic", topic).Msg("dropping slow subscriber")
		h.remove(s)
	}
	return nil
}

func (h *Hub) PublishTick(ctx context.Context, tick model.Tick) error {
	return h.Publish(TopicMarket, tick)
}

func (h *Hub) PublishDecision(ctx context.Context, d model.Decision) error {
	return h.Publish(TopicDecision, d)
}

// Close 断开所有订阅者
func (h *Hub) Close() error {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for s := range subs {
		s.close()
	}
	return nil
}

var _ port.Broadcaster = (*Hub)(nil)
