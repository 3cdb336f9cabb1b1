package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v9"
)

// RedisCache 基于 redis 的缓存实现，同时提供跨实例互斥锁
type RedisCache struct {
	cli       redis.UniversalClient
	keyPrefix string
}

type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
}

func NewRedisCache(cfg Config) *RedisCache {
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	return &RedisCache{
		cli:       cli,
		keyPrefix: cfg.KeyPrefix,
	}
}

func (c *RedisCache) key(key string) string {
	if c.keyPrefix == "" {
		return key
	}
	return c.keyPrefix + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := c.cli.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return res, err
}

func (c *RedisCache) SetEx(ctx context.Context, key, value string, expiresAt time.Duration) error {
	return c.cli.SetEx(ctx, c.key(key), value, expiresAt).Err()
}

func (c *RedisCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, c.key(key), expiration).Err()
}

// TryLock 以 SetNX 实现的非阻塞锁，ctx 结束前未显式释放则依赖过期时间兜底
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, c.key("lock:"+key), "1", ttl).Result()
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.cli.Del(ctx, c.key("lock:"+key)).Err()
}
