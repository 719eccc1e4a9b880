package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ordersync:delivery:"

// RedisDeliveryLedger keeps delivery IDs in Redis so that every instance
// behind the load balancer sees the same ledger
type RedisDeliveryLedger struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisDeliveryLedger wraps an existing client. An empty prefix uses the default.
func NewRedisDeliveryLedger(client redis.UniversalClient, keyPrefix string) *RedisDeliveryLedger {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisDeliveryLedger{client: client, keyPrefix: keyPrefix}
}

// DialRedisDeliveryLedger connects to Redis and verifies the connection
func DialRedisDeliveryLedger(ctx context.Context, addr, password string, db int) (*RedisDeliveryLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDeliveryLedger(client, ""), nil
}

// MarkProcessed records a delivery with SET NX and a TTL.
// Returns false if it was already recorded.
func (l *RedisDeliveryLedger) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.keyPrefix+deliveryID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record delivery: %w", err)
	}
	return ok, nil
}

// IsProcessed reports whether the delivery is recorded
func (l *RedisDeliveryLedger) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.keyPrefix+deliveryID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up delivery: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis client
func (l *RedisDeliveryLedger) Close() error {
	return l.client.Close()
}

var _ shared.IdempotencyStore = (*RedisDeliveryLedger)(nil)
