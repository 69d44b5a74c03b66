package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	_ Cacher = (*redisCache)(nil)
	_ Cacher = (*noopCache)(nil)
)

// Cacher stores rendered catalog views. Get and Set take keys resolved by Key
// so a lookup and the write that follows it use the same generation.
type Cacher interface {
	// Key scopes name to the current cache generation.
	Key(ctx context.Context, name string) (string, error)
	// Get loads the value cached under key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	// Invalidate drops every cached value at once.
	Invalidate(ctx context.Context) error
}

// redisCache namespaces keys with a generation counter. Bumping the
// counter makes all previous keys unreachable until they expire.
type redisCache struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache provides an instance of redis-based views cache.
func NewRedisCache(logger *zap.Logger, config *CacheConfig, client *redis.Client) Cacher {
	return &redisCache{
		logger: logger,
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

func (rc *redisCache) generationKey() string {
	return rc.prefix + ":generation"
}

func (rc *redisCache) Key(ctx context.Context, name string) (string, error) {
	gen, err := rc.client.Get(ctx, rc.generationKey()).Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return rc.prefix + ":" + gen + ":" + name, nil
}

func (rc *redisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err = jsonCodec.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (rc *redisCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := jsonCodec.Marshal(value)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, key, data, rc.ttl).Err()
}

func (rc *redisCache) Invalidate(ctx context.Context) error {
	return rc.client.Incr(ctx, rc.generationKey()).Err()
}

// noopCache is used when caching is disabled.
type noopCache struct{}

// NewNoopCache provides a cache which never stores anything.
func NewNoopCache() Cacher {
	return noopCache{}
}

func (noopCache) Key(_ context.Context, name string) (string, error)     { return name, nil }
func (noopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (noopCache) Set(context.Context, string, interface{}) error         { return nil }
func (noopCache) Invalidate(context.Context) error                       { return nil }
