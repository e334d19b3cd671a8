package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-learn/internal/logger"
)

const (
	keyPrefix = "view:"
	verPrefix = "viewver:"

	// versions outlive any build that could still be holding one
	versionTTL = 24 * time.Hour
)

// RedisCache stores views in Redis and announces invalidated keys on a
// pub/sub channel so connected frontends can refetch.
type RedisCache struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	ttl     time.Duration
}

func NewRedisCache(ctx context.Context, log *logger.Logger, addr, channel string, ttl time.Duration) (*RedisCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{
		log:     log.With("service", "RedisViewCache"),
		rdb:     rdb,
		channel: channel,
		ttl:     ttl,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Version(ctx context.Context, key string) (uint64, error) {
	v, err := c.rdb.Get(ctx, verPrefix+key).Uint64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetIfVersion writes under WATCH on the version key, so an Invalidate
// from any instance between the check and the write aborts it.
func (c *RedisCache) SetIfVersion(ctx context.Context, key string, val []byte, ver uint64) (bool, error) {
	vk := verPrefix + key
	stored := false
	err := c.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, vk).Uint64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if cur != ver {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, keyPrefix+key, val, c.ttl)
			return nil
		})
		stored = err == nil
		return err
	}, vk)
	if errors.Is(err, goredis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, verPrefix+k)
			p.Expire(ctx, verPrefix+k, versionTTL)
		}
		p.Del(ctx, full...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	if c.channel == "" {
		return nil
	}
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, c.channel, raw).Err(); err != nil {
		// keys are already gone; the announcement is advisory
		c.log.Warn("publish invalidation failed", "error", err, "keys", len(keys))
	}
	return nil
}

func (c *RedisCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
