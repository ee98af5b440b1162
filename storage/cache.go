package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ewintr.nl/conceptube/config"
	"ewintr.nl/conceptube/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/singleflight"
)

const searchKeyPrefix = "search:"

type SearchCache interface {
	Get(ctx context.Context, query string, limit int) ([]*model.Video, bool)
	Set(ctx context.Context, query string, limit int, videos []*model.Video)
	Invalidate(ctx context.Context) error
}

// RedisCache keeps search results in Redis for a fixed TTL.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{
		rdb:    rdb,
		ttl:    cfg.CacheTTL,
		logger: logger.With(slog.String("component", "search-cache")),
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, query string, limit int) ([]*model.Video, bool) {
	key := searchKey(query, limit)
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	var videos []*model.Video
	if err := json.Unmarshal(data, &videos); err != nil {
		c.logger.Error("cache unmarshal failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}

	return videos, true
}

func (c *RedisCache) Set(ctx context.Context, query string, limit int, videos []*model.Video) {
	key := searchKey(query, limit)
	data, err := json.Marshal(videos)
	if err != nil {
		c.logger.Error("cache marshal failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning search keys: %w", err)
	}

	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// searchKey folds case only, whitespace is part of the substring searched
// for.
func searchKey(query string, limit int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:limit=%d", strings.ToLower(query), limit)))
	return fmt.Sprintf("%s%x", searchKeyPrefix, hash[:16])
}

// CachedVideoRepository serves searches from a SearchCache and drops the
// cache on every write. Concurrent misses for the same search share one
// query.
type CachedVideoRepository struct {
	VideoRepository
	cache  SearchCache
	group  singleflight.Group
	logger *slog.Logger
}

func NewCachedVideoRepository(repo VideoRepository, cache SearchCache, logger *slog.Logger) *CachedVideoRepository {
	return &CachedVideoRepository{
		VideoRepository: repo,
		cache:           cache,
		logger:          logger,
	}
}

func (r *CachedVideoRepository) Search(ctx context.Context, query string, limit int) ([]*model.Video, error) {
	if videos, ok := r.cache.Get(ctx, query, limit); ok {
		return videos, nil
	}

	val, err, _ := r.group.Do(searchKey(query, limit), func() (any, error) {
		videos, err := r.VideoRepository.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, query, limit, videos)
		return videos, nil
	})
	if err != nil {
		return nil, err
	}

	return val.([]*model.Video), nil
}

func (r *CachedVideoRepository) Insert(ctx context.Context, video *model.Video) error {
	if err := r.VideoRepository.Insert(ctx, video); err != nil {
		return err
	}
	r.invalidate(ctx)

	return nil
}

func (r *CachedVideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.VideoRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)

	return nil
}

func (r *CachedVideoRepository) invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Error("failed to invalidate search cache", slog.String("error", err.Error()))
	}
}
