// Package relay fans out room events to connected participants. A publish
// goes through Redis pub/sub so every server instance sees it; delivery is
// notify-then-pull: events carry just enough to say "something changed"
// and receivers re-fetch the authoritative log.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/privchat/chat-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	EventMessage = "chat.message"
	EventDestroy = "chat.destroy"
)

type Event struct {
	Type string          `json:"type"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"data"`
}

// MessageSignal is the payload of a chat.message event. It identifies the
// room that changed and nothing else; content always comes from the log.
type MessageSignal struct {
	RoomID string `json:"roomId"`
}

// DestroySignal is the payload of a chat.destroy event.
type DestroySignal struct {
	IsDestroyed bool `json:"isDestroyed"`
}

type Client struct {
	RoomID string
	Events chan Event
	Done   chan struct{}
}

// roomSub tracks one room's local subscribers and the cancel func that
// stops its pub/sub goroutine once the last of them leaves.
type roomSub struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

type Broker struct {
	redis  *redisclient.Client
	rooms  map[string]*roomSub
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		rooms:  make(map[string]*roomSub),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(roomID string) *Client {
	client := &Client{
		RoomID: roomID,
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	sub, ok := b.rooms[roomID]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		sub = &roomSub{
			clients: make(map[*Client]bool),
			cancel:  cancel,
		}
		b.rooms[roomID] = sub
		go b.subscribeToRedis(ctx, roomID)
	}
	sub.clients[client] = true
	clientCount := len(sub.clients)
	b.mu.Unlock()

	log.Info().
		Str("roomId", roomID).
		Int("clientCount", clientCount).
		Msg("relay client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.rooms[client.RoomID]
	if !ok || !sub.clients[client] {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		sub.cancel()
		delete(b.rooms, client.RoomID)
	}

	log.Info().
		Str("roomId", client.RoomID).
		Int("clientCount", len(sub.clients)).
		Msg("relay client unsubscribed")
}

// PublishMessage emits a chat.message signal for the room. The stream key
// counts event sequence numbers so reconnecting clients can detect a
// missed signal; its TTL is coordinated by the message repository.
func (b *Broker) PublishMessage(ctx context.Context, roomID string) error {
	seq, err := b.redis.Incr(ctx, redisclient.RoomStreamKey(roomID)).Result()
	if err != nil {
		return err
	}

	data, err := json.Marshal(MessageSignal{RoomID: roomID})
	if err != nil {
		return err
	}

	return b.publish(ctx, roomID, Event{Type: EventMessage, Seq: seq, Data: data})
}

// PublishDestroy emits the final chat.destroy event for the room.
func (b *Broker) PublishDestroy(ctx context.Context, roomID string) error {
	data, err := json.Marshal(DestroySignal{IsDestroyed: true})
	if err != nil {
		return err
	}

	return b.publish(ctx, roomID, Event{Type: EventDestroy, Data: data})
}

func (b *Broker) publish(ctx context.Context, roomID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return b.redis.Publish(ctx, redisclient.RoomChannel(roomID), data).Err()
}

// subscribeToRedis pumps one room's pub/sub channel into the local
// subscriber set. ctx is cancelled when the last subscriber leaves, so a
// later re-subscribe spawns a fresh goroutine instead of stacking a
// duplicate onto the same channel.
func (b *Broker) subscribeToRedis(ctx context.Context, roomID string) {
	channel := redisclient.RoomChannel(roomID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("roomId", roomID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal relay event")
				continue
			}

			b.broadcast(roomID, event)
		}
	}
}

func (b *Broker) broadcast(roomID string, event Event) {
	// Snapshot the subscriber set under the lock: Unsubscribe mutates the
	// map concurrently, and ranging over it unlocked is a runtime throw.
	b.mu.RLock()
	var clients []*Client
	if sub, ok := b.rooms[roomID]; ok {
		clients = make([]*Client, 0, len(sub.clients))
		for client := range sub.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("roomId", roomID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.rooms {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.rooms = make(map[string]*roomSub)
}

func (b *Broker) ClientCount(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sub, ok := b.rooms[roomID]; ok {
		return len(sub.clients)
	}
	return 0
}
