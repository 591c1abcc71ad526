package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/privchat/chat-server-go/internal/middleware"
	"github.com/privchat/chat-server-go/internal/relay"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = relay.HeartbeatInterval
)

// WebSocketHandler carries the same relay events as the SSE endpoint for
// clients that prefer a socket. The socket is receive-only: messages are
// posted over HTTP so they go through validation and TTL coordination.
type WebSocketHandler struct {
	broker   *relay.Broker
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(broker *relay.Broker) *WebSocketHandler {
	return &WebSocketHandler{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := middleware.GetRoom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("roomId", room.ID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := h.broker.Subscribe(room.ID)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("roomId", room.ID).Msg("websocket connection established")

	// Reader goroutine only watches for the peer closing the socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return

		case <-client.Done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
			return

		case event := <-client.Events:
			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("failed to marshal relay event")
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("roomId", room.ID).Msg("websocket write failed")
				return
			}

			if event.Type == relay.EventDestroy {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
