package provision

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// HashCache remembers channel access hashes across process restarts.
type HashCache interface {
	Put(ctx context.Context, channelID, accessHash int64) error
	Get(ctx context.Context, channelID int64) (int64, bool, error)
}

// RedisHashCache keys hashes by channel id with no expiry; hashes are stable
// per session.
type RedisHashCache struct {
	rdb *redis.Client
}

func NewRedisHashCache(rdb *redis.Client) *RedisHashCache {
	return &RedisHashCache{rdb: rdb}
}

func hashKey(channelID int64) string { return fmt.Sprintf("tg:hash:%d", channelID) }

func (c *RedisHashCache) Put(ctx context.Context, channelID, accessHash int64) error {
	return c.rdb.Set(ctx, hashKey(channelID), strconv.FormatInt(accessHash, 10), 0).Err()
}

func (c *RedisHashCache) Get(ctx context.Context, channelID int64) (int64, bool, error) {
	v, err := c.rdb.Get(ctx, hashKey(channelID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	h, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt hash for channel %d: %w", channelID, err)
	}
	return h, true, nil
}

// MemHashCache is the in-process fallback used by tests.
type MemHashCache struct {
	m map[int64]int64
}

func NewMemHashCache() *MemHashCache { return &MemHashCache{m: make(map[int64]int64)} }

func (c *MemHashCache) Put(_ context.Context, channelID, accessHash int64) error {
	c.m[channelID] = accessHash
	return nil
}

func (c *MemHashCache) Get(_ context.Context, channelID int64) (int64, bool, error) {
	h, ok := c.m[channelID]
	return h, ok, nil
}
