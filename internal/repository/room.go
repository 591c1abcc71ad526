package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/privchat/chat-server-go/internal/config"
	"github.com/privchat/chat-server-go/internal/model"
	redisclient "github.com/privchat/chat-server-go/internal/redis"
)

// RoomRepository is the store-side half of the admission gateway. The
// shared TTL store is the only cross-request state in the system, so every
// method takes a context and may fail transiently.
type RoomRepository interface {
	Create(ctx context.Context, roomID string, ttl time.Duration) error
	Find(ctx context.Context, roomID string) (*model.Room, error)
	// Admit runs the atomic append-if-under-capacity protocol: candidate
	// is appended only if presented is not already a member and the room
	// has a free slot. The returned outcome says which case applied.
	Admit(ctx context.Context, roomID, candidate, presented string) (model.AdmitOutcome, error)
	TTL(ctx context.Context, roomID string) (int64, error)
	Delete(ctx context.Context, roomID string) error
}

// admitScript is the whole admission state machine in one round trip.
// Running it server-side is what closes the race where two concurrent
// joins both observe one free slot and both append.
var admitScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[1], 'connected')
if not raw then
    return 'not_found'
end

local connected = cjson.decode(raw)

if ARGV[2] ~= '' then
    for _, token in ipairs(connected) do
        if token == ARGV[2] then
            return 'member'
        end
    end
end

if #connected >= tonumber(ARGV[3]) then
    return 'full'
end

table.insert(connected, ARGV[1])
redis.call('HSET', KEYS[1], 'connected', cjson.encode(connected))
return 'admitted'
`)

type redisRoomRepository struct {
	client *redisclient.Client
}

func NewRoomRepository(client *redisclient.Client) RoomRepository {
	return &redisRoomRepository{client: client}
}

func (r *redisRoomRepository) Create(ctx context.Context, roomID string, ttl time.Duration) error {
	key := redisclient.RoomMetaKey(roomID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"connected": "[]",
		"createdAt": time.Now().UnixMilli(),
	})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create room %s: %w", roomID, err)
	}
	return nil
}

func (r *redisRoomRepository) Find(ctx context.Context, roomID string) (*model.Room, error) {
	meta, err := r.client.HGetAll(ctx, redisclient.RoomMetaKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	if len(meta) == 0 {
		return nil, nil
	}

	var connected []string
	if raw, ok := meta["connected"]; ok {
		if err := json.Unmarshal([]byte(raw), &connected); err != nil {
			return nil, fmt.Errorf("decode connected set for room %s: %w", roomID, err)
		}
	}

	room := &model.Room{
		ID:        roomID,
		Connected: connected,
	}
	if raw, ok := meta["createdAt"]; ok {
		var ms int64
		if _, err := fmt.Sscanf(raw, "%d", &ms); err == nil {
			room.CreatedAt = time.UnixMilli(ms)
		}
	}
	return room, nil
}

func (r *redisRoomRepository) Admit(ctx context.Context, roomID, candidate, presented string) (model.AdmitOutcome, error) {
	result, err := admitScript.Run(ctx, r.client.Client,
		[]string{redisclient.RoomMetaKey(roomID)},
		candidate, presented, config.MaxUsersPerRoom,
	).Text()
	if err != nil {
		return "", fmt.Errorf("admit to room %s: %w", roomID, err)
	}
	return model.AdmitOutcome(result), nil
}

func (r *redisRoomRepository) TTL(ctx context.Context, roomID string) (int64, error) {
	ttl, err := r.client.TTL(ctx, redisclient.RoomMetaKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl for room %s: %w", roomID, err)
	}
	// -1 (no expiry) and -2 (no key) both clamp to zero: a room either
	// counts down or is gone.
	if ttl < 0 {
		return 0, nil
	}
	return int64(ttl.Seconds()), nil
}

func (r *redisRoomRepository) Delete(ctx context.Context, roomID string) error {
	err := r.client.Del(ctx,
		redisclient.RoomMetaKey(roomID),
		redisclient.RoomMessagesKey(roomID),
		redisclient.RoomStreamKey(roomID),
	).Err()
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}
