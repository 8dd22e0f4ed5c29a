package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetERPToken caches the Hiper bearer token until shortly before expiry.
func (c *Client) SetERPToken(ctx context.Context, token string, ttl time.Duration) error {
	return c.rdb.Set(ctx, "erp:token", token, ttl).Err()
}

// GetERPToken retrieves the cached Hiper token. Returns empty string on
// cache miss.
func (c *Client) GetERPToken(ctx context.Context) (string, error) {
	token, err := c.rdb.Get(ctx, "erp:token").Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// SetCEP caches a raw ViaCEP response payload.
func (c *Client) SetCEP(ctx context.Context, cep string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("cep:%s", cep), payload, ttl).Err()
}

// GetCEP retrieves a cached ViaCEP payload. Returns nil on cache miss.
func (c *Client) GetCEP(ctx context.Context, cep string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, fmt.Sprintf("cep:%s", cep)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}
