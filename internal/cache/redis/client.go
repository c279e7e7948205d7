package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/pkg/circuitbreaker"
	"github.com/rake220/customer-segmentation/pkg/logger"
	"github.com/rake220/customer-segmentation/pkg/retry"
)

const keyPrefix = "segmentation:"

// Client caches segmentation results. Calls go through a circuit breaker so an
// unavailable Redis costs one fast failure instead of a timeout per request.
type Client struct {
	client *redis.Client
	ttl    time.Duration
	cb     *circuitbreaker.CircuitBreaker
}

func NewClient(ctx context.Context, host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	policy := retry.DefaultPolicy("redis ping")
	policy.Logger = logger.Named("redis")
	err := retry.Do(ctx, policy, func(int) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("ttl", ttl))

	return newClient(client, ttl), nil
}

func newClient(client *redis.Client, ttl time.Duration) *Client {
	return &Client{
		client: client,
		ttl:    ttl,
		cb: circuitbreaker.NewCircuitBreaker("redis", circuitbreaker.Config{
			MaxRequests:      1,
			Timeout:          30 * time.Second,
			FailureThreshold: 3,
			Logger:           logger.Named("redis"),
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetResult(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	err = c.cb.Execute(func() error {
		return c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set result cache: %w", err)
	}

	logger.Debug("Segmentation result cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

// GetResult decodes a cached result into value and reports whether the key existed.
func (c *Client) GetResult(ctx context.Context, key string, value interface{}) (bool, error) {
	var data []byte
	err := c.cb.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, keyPrefix+key).Bytes()
		if err == redis.Nil {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to get result cache: %w", err)
	}
	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	logger.Debug("Segmentation cache hit", zap.String("key", key))
	return true, nil
}
