package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// RoomMetaKey holds room metadata (createdAt, connected) and carries the
// authoritative TTL for the whole room.
func RoomMetaKey(roomID string) string {
	return fmt.Sprintf("meta:%s", roomID)
}

// RoomMessagesKey is the append-only ciphertext log for a room.
func RoomMessagesKey(roomID string) string {
	return fmt.Sprintf("messages:%s", roomID)
}

// RoomStreamKey tracks the relay event sequence for a room.
func RoomStreamKey(roomID string) string {
	return fmt.Sprintf("stream:%s", roomID)
}

// RoomChannel is the pub/sub channel relay events are published on.
func RoomChannel(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}
