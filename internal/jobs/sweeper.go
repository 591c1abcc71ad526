package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/privchat/chat-server-go/internal/redis"
)

// SweeperJob deletes message logs and stream keys whose room metadata is
// gone. Normal operation never leaves such orphans: destroy deletes all
// three keys and the TTL coordinator keeps dependent expiries at or below
// the room's own. The sweeper covers the crash window between those
// steps, so a log can never outlive its room by more than one interval.
type SweeperJob struct {
	redis    *redisclient.Client
	interval time.Duration
	done     chan struct{}
}

func NewSweeperJob(redisClient *redisclient.Client, interval time.Duration) *SweeperJob {
	return &SweeperJob{
		redis:    redisClient,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *SweeperJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweeper job started")
}

func (j *SweeperJob) Stop() {
	close(j.done)
	log.Info().Msg("sweeper job stopped")
}

func (j *SweeperJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweeperJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep orphaned keys")
	} else if removed > 0 {
		log.Info().Int64("count", removed).Msg("swept orphaned keys")
	}
}

// Sweep scans for dependent keys without a live meta key and deletes them.
func (j *SweeperJob) Sweep(ctx context.Context) (int64, error) {
	var removed int64

	for _, pattern := range []string{"messages:*", "stream:*"} {
		iter := j.redis.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			roomID := key[strings.Index(key, ":")+1:]

			exists, err := j.redis.Exists(ctx, redisclient.RoomMetaKey(roomID)).Result()
			if err != nil {
				return removed, err
			}
			if exists > 0 {
				continue
			}

			if err := j.redis.Del(ctx, key).Err(); err != nil {
				return removed, err
			}
			removed++

			log.Debug().
				Str("key", key).
				Str("roomId", roomID).
				Msg("deleted orphaned key")
		}
		if err := iter.Err(); err != nil {
			return removed, err
		}
	}

	return removed, nil
}
