package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const viewerKeyTTL = 6 * time.Hour

type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// Test connection
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Ping reports whether Redis is reachable
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Viewer presence

func viewersKey(videoID uuid.UUID) string {
	return fmt.Sprintf("viewers:video:%s", videoID.String())
}

// AddViewer records a connected viewer session on a video
func (r *RedisClient) AddViewer(ctx context.Context, videoID uuid.UUID, sessionID string) error {
	key := viewersKey(videoID)
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, key, sessionID)
	pipe.Expire(ctx, key, viewerKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveViewer drops a viewer session
func (r *RedisClient) RemoveViewer(ctx context.Context, videoID uuid.UUID, sessionID string) error {
	return r.client.SRem(ctx, viewersKey(videoID), sessionID).Err()
}

// CountViewers returns the number of viewer sessions on a video
func (r *RedisClient) CountViewers(ctx context.Context, videoID uuid.UUID) (int64, error) {
	return r.client.SCard(ctx, viewersKey(videoID)).Result()
}

// ClearViewers forgets every session of a video, used when a broadcast ends
func (r *RedisClient) ClearViewers(ctx context.Context, videoID uuid.UUID) error {
	return r.client.Del(ctx, viewersKey(videoID)).Err()
}

// tokenBucket keeps tokens and the last refill timestamp per key.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local vals = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(vals[1])
local last = tonumber(vals[2])
if tokens == nil then tokens = burst end
if last == nil then last = now end
local delta = math.max(0, now - last)
local new_tokens = math.min(burst, tokens + (delta * rate / 1000))
local allowed = 0
if new_tokens >= 1 then
	new_tokens = new_tokens - 1
	allowed = 1
end
redis.call('HSET', key, 'tokens', new_tokens, 'last', now)
redis.call('PEXPIRE', key, 60000)
return allowed
`)

// AllowAction implements a Redis-backed token-bucket limiter per key (user+action).
// Returns true if the action is allowed, false if rate-limited.
func (r *RedisClient) AllowAction(ctx context.Context, userID uuid.UUID, action string, rate float64, burst int) (bool, error) {
	key := fmt.Sprintf("rl:%s:%s", action, userID.String())
	now := time.Now().UnixMilli()

	res, err := tokenBucket.Run(ctx, r.client, []string{key}, rate, burst, now).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	return res == 1, nil
}
