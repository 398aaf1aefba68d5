// Package windowcache implements the WindowCache port against Redis
// (or any Redis-wire-compatible store), plus an in-memory adapter used
// by unit tests.
package windowcache

import (
	"context"
	_ "embed"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abiolaogu/voxguard-detectord/pkg/apperror"
)

//go:embed window.lua
var addCallerLua string

var addCallerScript = redis.NewScript(addCallerLua)

const (
	windowKeyPrefix    = "window:"
	cooldownKeyPrefix  = "cooldown:"
	blacklistKeyPrefix = "blacklist:ip:"
)

// RedisCache implements ports.WindowCache against a redis.UniversalClient,
// adapted from the rate-limiter's embedded-Lua-script idiom: the two-step
// SADD+EXPIRE is one atomic script invocation rather than a client-side
// pipeline, so a crash between steps cannot leave an un-expiring set.
type RedisCache struct {
	rdb redis.UniversalClient
}

func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) AddCaller(ctx context.Context, b, a string, window time.Duration) error {
	key := windowKeyPrefix + b
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if err := addCallerScript.Run(ctx, c.rdb, []string{key}, a, seconds).Err(); err != nil {
		return apperror.TransientBackendf(err, "window cache add_caller failed for %s", b)
	}
	return nil
}

func (c *RedisCache) DistinctCount(ctx context.Context, b string) (int, error) {
	n, err := c.rdb.SCard(ctx, windowKeyPrefix+b).Result()
	if err != nil && err != redis.Nil {
		return 0, apperror.TransientBackendf(err, "window cache distinct_count failed for %s", b)
	}
	return int(n), nil
}

func (c *RedisCache) DistinctMembers(ctx context.Context, b string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, windowKeyPrefix+b).Result()
	if err != nil && err != redis.Nil {
		return nil, apperror.TransientBackendf(err, "window cache distinct_members failed for %s", b)
	}
	return members, nil
}

func (c *RedisCache) SetCooldown(ctx context.Context, b string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, cooldownKeyPrefix+b, "1", ttl).Err(); err != nil {
		return apperror.TransientBackendf(err, "window cache set_cooldown failed for %s", b)
	}
	return nil
}

func (c *RedisCache) InCooldown(ctx context.Context, b string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cooldownKeyPrefix+b).Result()
	if err != nil {
		return false, apperror.TransientBackendf(err, "window cache in_cooldown failed for %s", b)
	}
	return n > 0, nil
}

func (c *RedisCache) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistKeyPrefix+ip).Result()
	if err != nil {
		return false, apperror.TransientBackendf(err, "window cache is_blacklisted failed for %s", ip)
	}
	return n > 0, nil
}

func (c *RedisCache) AddBlacklist(ctx context.Context, ip string, ttl time.Duration) error {
	key := blacklistKeyPrefix + ip
	var err error
	if ttl > 0 {
		err = c.rdb.Set(ctx, key, "1", ttl).Err()
	} else {
		err = c.rdb.Set(ctx, key, "1", 0).Err()
	}
	if err != nil {
		return apperror.TransientBackendf(err, "window cache add_blacklist failed for %s", ip)
	}
	return nil
}
