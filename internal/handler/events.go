package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/privchat/chat-server-go/internal/middleware"
	"github.com/privchat/chat-server-go/internal/relay"
)

// EventsHandler streams relay events to a room participant over SSE.
// Events are signals: the client reacts by re-fetching the log and TTL,
// never by trusting event payloads.
type EventsHandler struct {
	broker *relay.Broker
}

func NewEventsHandler(broker *relay.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := middleware.GetRoom(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(room.ID)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("roomId", room.ID).Msg("sse connection established")

	ctx := r.Context()

	heartbeat := time.NewTicker(relay.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("roomId", room.ID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("roomId", room.ID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			// The room is gone after a destroy; nothing further will
			// ever arrive on this stream.
			if event.Type == relay.EventDestroy {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("roomId", room.ID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event relay.Event) error {
	if event.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", event.Seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
