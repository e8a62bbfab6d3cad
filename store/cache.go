package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/phanxgames/plaque"
	"github.com/redis/go-redis/v9"
)

const (
	listCacheKey     = "plaque:templates:list"
	listCacheTTL     = 5 * time.Minute
	listCacheTimeout = 300 * time.Millisecond
)

// ListCache holds the serialized template list between writes.
type ListCache interface {
	Get(ctx context.Context) ([]plaque.Template, bool)
	Set(ctx context.Context, list []plaque.Template)
	Invalidate(ctx context.Context)
}

// NewRedisClientFromEnv connects to REDIS_ADDR. It returns nil, nil when
// REDIS_ADDR is unset. REDIS_DB and REDIS_PASSWORD are optional.
func NewRedisClientFromEnv() (*redis.Client, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}
	db := 0
	if rawDB := strings.TrimSpace(os.Getenv("REDIS_DB")); rawDB != "" {
		if parsed, err := strconv.Atoi(rawDB); err == nil {
			db = parsed
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: ping redis %s failed: %w", addr, err)
	}
	return client, nil
}

type redisListCache struct {
	client *redis.Client
	key    string
}

// NewRedisListCache caches the template list in redis. A nil client gives
// a nil cache, which the module treats as disabled.
func NewRedisListCache(client *redis.Client) ListCache {
	if client == nil {
		return nil
	}
	return &redisListCache{client: client, key: listCacheKey}
}

func (c *redisListCache) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= listCacheTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, listCacheTimeout)
}

func (c *redisListCache) Get(ctx context.Context) ([]plaque.Template, bool) {
	ctx, cancel := c.cacheContext(ctx)
	defer cancel()
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("store: read list cache: %v", err)
		}
		return nil, false
	}
	var list []plaque.Template
	if err := json.Unmarshal(data, &list); err != nil {
		log.Printf("store: decode list cache: %v", err)
		return nil, false
	}
	return list, true
}

func (c *redisListCache) Set(ctx context.Context, list []plaque.Template) {
	data, err := json.Marshal(list)
	if err != nil {
		log.Printf("store: encode list cache: %v", err)
		return
	}
	ctx, cancel := c.cacheContext(ctx)
	defer cancel()
	if err := c.client.Set(ctx, c.key, data, listCacheTTL).Err(); err != nil {
		log.Printf("store: write list cache: %v", err)
	}
}

func (c *redisListCache) Invalidate(ctx context.Context) {
	ctx, cancel := c.cacheContext(ctx)
	defer cancel()
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		log.Printf("store: invalidate list cache: %v", err)
	}
}
