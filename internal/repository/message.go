package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/privchat/chat-server-go/internal/model"
	redisclient "github.com/privchat/chat-server-go/internal/redis"
)

// MessageRepository owns the append-only message log and the TTL
// coordination of the keys that depend on the room's clock.
type MessageRepository interface {
	Append(ctx context.Context, msg model.Message) error
	List(ctx context.Context, roomID string) ([]model.Message, error)
	// RefreshTTL re-aligns the message log's and relay stream's expiry to
	// the room's remaining TTL. Returns the remaining seconds, zero if the
	// room is already gone (in which case nothing was touched).
	RefreshTTL(ctx context.Context, roomID string) (int64, error)
}

// refreshScript reads the meta key's remaining TTL and applies it to the
// dependent keys in the same script execution, so their expiry is always
// derived from the authoritative clock and can shrink retention but never
// extend it. A non-positive remaining TTL means the room is gone and the
// refresh is skipped entirely.
var refreshScript = redis.NewScript(`
local remaining = redis.call('TTL', KEYS[1])
if remaining <= 0 then
    return 0
end

if redis.call('EXISTS', KEYS[2]) == 1 then
    redis.call('EXPIRE', KEYS[2], remaining)
end
if redis.call('EXISTS', KEYS[3]) == 1 then
    redis.call('EXPIRE', KEYS[3], remaining)
end

return remaining
`)

type redisMessageRepository struct {
	client *redisclient.Client
}

func NewMessageRepository(client *redisclient.Client) MessageRepository {
	return &redisMessageRepository{client: client}
}

func (r *redisMessageRepository) Append(ctx context.Context, msg model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	if err := r.client.RPush(ctx, redisclient.RoomMessagesKey(msg.RoomID), data).Err(); err != nil {
		return fmt.Errorf("append message to room %s: %w", msg.RoomID, err)
	}
	return nil
}

func (r *redisMessageRepository) List(ctx context.Context, roomID string) ([]model.Message, error) {
	entries, err := r.client.LRange(ctx, redisclient.RoomMessagesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages for room %s: %w", roomID, err)
	}

	messages := make([]model.Message, 0, len(entries))
	for _, entry := range entries {
		var msg model.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("decode message in room %s: %w", roomID, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *redisMessageRepository) RefreshTTL(ctx context.Context, roomID string) (int64, error) {
	remaining, err := refreshScript.Run(ctx, r.client.Client, []string{
		redisclient.RoomMetaKey(roomID),
		redisclient.RoomMessagesKey(roomID),
		redisclient.RoomStreamKey(roomID),
	}).Int64()
	if err != nil {
		return 0, fmt.Errorf("refresh ttl for room %s: %w", roomID, err)
	}
	return remaining, nil
}
