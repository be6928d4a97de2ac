package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// ReserveStock atomically checks and decrements available stock via Lua.
// Returns (true, nil) on success, (false, nil) on insufficient stock, and an
// error when the counter is not cached (caller falls back to the database).
func (c *Client) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	outcome, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type %T", result)
	}

	switch outcome {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("stock counter not cached for product %d", productID)
	}
}

// ReleaseStock atomically credits stock back. The caller is responsible for
// at-most-once semantics per order; the database release ledger decides
// whether this credit happens at all.
func (c *Client) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// InitStock seeds the cached stock counter for a product
func (c *Client) InitStock(ctx context.Context, productID int64, available int) error {
	return c.rdb.Set(ctx, stockKey(productID), available, 0).Err()
}

// GetStock retrieves the cached stock counter
func (c *Client) GetStock(ctx context.Context, productID int64) (int, error) {
	val, err := c.rdb.Get(ctx, stockKey(productID)).Int()
	if err == redis.Nil {
		return 0, fmt.Errorf("stock counter not cached for product %d", productID)
	}
	return val, err
}

// DropStock removes the cached counter, forcing the next reservation to the
// database path until the counter is re-seeded.
func (c *Client) DropStock(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, stockKey(productID)).Err()
}
