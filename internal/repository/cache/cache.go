// Package cache puts a Redis cache-aside layer in front of the redirect lookup.
package cache

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "link:code:"

// ErrMiss is returned by Client.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Client is the subset of Redis the cache needs.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// RedisClient adapts go-redis to Client.
type RedisClient struct {
	rdb redis.UniversalClient
}

func NewRedisClient(rdb redis.UniversalClient) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (c *RedisClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *RedisClient) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Storage wraps a repository.Storage and serves active-link lookups by code
// from the cache. Deactivation and deletion evict the cached entry.
type Storage struct {
	repository.Storage

	client Client
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func New(backend repository.Storage, client Client, ttl time.Duration, log *zap.Logger) *Storage {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Storage{
		Storage: backend,
		client:  client,
		ttl:     ttl,
		log:     log.With(zap.String("component", "link_cache")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func key(code string) string {
	return keyPrefix + code
}

func (s *Storage) GetActiveLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	data, err := s.client.Get(ctx, key(code))
	switch {
	case err == nil:
		var link domain.Link
		if err := json.Unmarshal([]byte(data), &link); err == nil && link.IsActive {
			return &link, nil
		}
		s.log.Warn("dropping unreadable cache entry", zap.String("short_code", code))
		_ = s.client.Del(ctx, key(code))
	case !errors.Is(err, ErrMiss):
		s.log.Warn("cache read failed, falling back to storage", zap.String("short_code", code), zap.Error(err))
	}

	link, err := s.Storage.GetActiveLinkByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.store(ctx, link)
	return link, nil
}

func (s *Storage) DeactivateLink(ctx context.Context, link *domain.Link) error {
	if err := s.Storage.DeactivateLink(ctx, link); err != nil {
		return err
	}
	s.evict(ctx, link.ShortCode)
	return nil
}

func (s *Storage) DeleteLink(ctx context.Context, id uuid.UUID, userID int64) (*domain.Link, error) {
	link, err := s.Storage.DeleteLink(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, link.ShortCode)
	return link, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.Storage.Ping(ctx); err != nil {
		return err
	}
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// store caches the link until the configured TTL or its own expiry, whichever comes first.
func (s *Storage) store(ctx context.Context, link *domain.Link) {
	ttl := s.ttl
	if untilExpiry := link.ExpiresAt.Sub(s.now()); untilExpiry < ttl {
		ttl = untilExpiry
	}
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(link)
	if err != nil {
		s.log.Warn("failed to encode link for cache", zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, key(link.ShortCode), string(data), ttl); err != nil {
		s.log.Warn("cache write failed", zap.String("short_code", link.ShortCode), zap.Error(err))
	}
}

func (s *Storage) evict(ctx context.Context, code string) {
	if err := s.client.Del(ctx, key(code)); err != nil {
		s.log.Warn("cache eviction failed", zap.String("short_code", code), zap.Error(err))
	}
}
