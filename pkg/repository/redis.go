package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func cartKey(id string) string {
	return fmt.Sprintf("cart:%s", id)
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// CartStore keeps serialized cart sessions with a sliding TTL.
type CartStore struct {
	redis *RedisRepository
}

func (r *RedisRepository) Carts() *CartStore {
	return &CartStore{redis: r}
}

func (s *CartStore) Load(ctx context.Context, id string) ([]byte, error) {
	data, err := s.redis.client.Get(ctx, cartKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("cart %s not found", id)
	}
	return data, err
}

func (s *CartStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return s.redis.client.Set(ctx, cartKey(id), data, ttl).Err()
}

func (s *CartStore) Delete(ctx context.Context, id string) error {
	return s.redis.client.Del(ctx, cartKey(id)).Err()
}

// ProductCache is a read-through cache in front of the product repository.
type ProductCache struct {
	redis *RedisRepository
	ttl   time.Duration
}

func (r *RedisRepository) ProductCache() *ProductCache {
	return &ProductCache{redis: r, ttl: r.config.ProductTTL}
}

func (c *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := c.redis.GetJSON(ctx, productKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *ProductCache) SetProduct(ctx context.Context, p *models.Product) error {
	return c.redis.SetJSON(ctx, productKey(p.ID), p, c.ttl)
}

func (c *ProductCache) DeleteProduct(ctx context.Context, id string) error {
	return c.redis.client.Del(ctx, productKey(id)).Err()
}
