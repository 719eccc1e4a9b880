package shared

import (
	"context"
	"time"
)

// IdempotencyStore records processed message IDs to short-circuit redelivery
type IdempotencyStore interface {
	// MarkProcessed marks an ID as processed with a TTL.
	// Returns true if the ID was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an ID has already been processed
	IsProcessed(ctx context.Context, id string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}
