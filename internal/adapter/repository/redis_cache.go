package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	domainRepo "github.com/wekeepgrowing/research-agent/internal/domain/repository"
	"go.uber.org/zap"
)

const redisCacheKeyPrefix = "research:pass:"

// redisCache is the shared cache backend for multi-instance deployments.
// Same best-effort contract as the memory cache: any Redis failure is a miss.
type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisConfig holds cache backend connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to Redis and returns the cache backend.
func NewRedisCache(cfg RedisConfig, logger *zap.Logger) (domainRepo.CacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCache{client: client, logger: logger}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (*entity.ResearchResult, bool) {
	data, err := c.client.Get(ctx, redisCacheKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var value entity.ResearchResult
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &value, true
}

func (c *redisCache) Set(ctx context.Context, key string, value *entity.ResearchResult, ttl time.Duration) {
	if value == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, redisCacheKeyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
