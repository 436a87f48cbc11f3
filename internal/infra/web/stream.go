package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
	"wisestudent-purchase/internal/infra/logging"
	"wisestudent-purchase/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
	streamSendBuffer = 16
)

// StreamHub fans activation events out to connected websocket clients.
// Every client receives every event; correlation against its own pending
// purchase happens client-side, which is what lets a device that never
// initiated the purchase react to it too.
type StreamHub struct {
	broadcaster adapter.Broadcaster
	auth        *AuthManager
	upgrader    websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]chan model.ActivationEvent

	log *zerolog.Logger
}

func NewStreamHub(broadcaster adapter.Broadcaster, auth *AuthManager, logger *zerolog.Logger) *StreamHub {
	return &StreamHub{
		broadcaster: broadcaster,
		auth:        auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]chan model.ActivationEvent),
		log:     logger,
	}
}

// Run subscribes to the broadcast channel and relays events to every
// connected client until ctx is cancelled. Blocking; run in a goroutine.
func (h *StreamHub) Run(ctx context.Context) error {
	return h.broadcaster.Subscribe(ctx, func(ev model.ActivationEvent) {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for id, ch := range h.clients {
			select {
			case ch <- ev:
			default:
				// Slow consumer; drop rather than stall the fan-out. The client
				// can still resolve state via GET /api/v1/purchase/{id}.
				h.log.Warn().Str("client_id", id).Msg("stream client send buffer full, event dropped")
			}
		}
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r)
}

// Serve authenticates the request, upgrades it and pumps events until the
// client goes away.
func (h *StreamHub) Serve(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.ParseFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.NewString()
	ch := make(chan model.ActivationEvent, streamSendBuffer)

	h.mu.Lock()
	h.clients[clientID] = ch
	h.mu.Unlock()
	metrics.StreamClientConnected()

	log := logging.With(r.Context(), h.log)
	log.Debug().Str("client_id", clientID).Str("user_id", claims.UserID).Msg("stream client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		metrics.StreamClientDisconnected()
		_ = conn.Close()
		log.Debug().Str("client_id", clientID).Msg("stream client disconnected")
	}()

	// Reader drains control frames and detects the close from the client side.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
