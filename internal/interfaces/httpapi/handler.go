package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"klinerelay/internal/domain/model"
)

// Relay 查询接口依赖的只读视图与手动刷新
type Relay interface {
	LatestTick() (model.Tick, bool)
	LatestDecision() (model.Decision, bool)
	ForceUpdate(ctx context.Context)
	Connected() bool
}

// Subscriptions WebSocket 推送入口（可选）
type Subscriptions interface {
	Handler(topic string) http.HandlerFunc
}

const forceUpdateReply = "Update request sent to background service"

type Handler struct {
	relay Relay
	mux   *http.ServeMux
}

func NewHandler(relay Relay, subs Subscriptions, marketTopic, decisionTopic string) *Handler {
	h := &Handler{relay: relay, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/market/current", h.current)
	h.mux.HandleFunc("GET /api/market/last-decision", h.lastDecision)
	h.mux.HandleFunc("POST /api/market/force-update", h.forceUpdate)
	h.mux.HandleFunc("GET /healthz", h.health)

	if subs != nil {
		h.mux.HandleFunc("GET /ws/market", subs.Handler(marketTopic))
		h.mux.HandleFunc("GET /ws/decision", subs.Handler(decisionTopic))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	tick, ok := h.relay.LatestTick()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, tick)
}

func (h *Handler) lastDecision(w http.ResponseWriter, r *http.Request) {
	d, ok := h.relay.LatestDecision()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) forceUpdate(w http.ResponseWriter, r *http.Request) {
	h.relay.ForceUpdate(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(forceUpdateReply))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"stream_connected": h.relay.Connected(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}
