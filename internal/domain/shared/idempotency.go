package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL covers Stripe's redelivery window for webhooks.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore is a set of keys with expiry. It backs webhook event
// dedupe, Idempotency-Key replay detection and token revocation.
type IdempotencyStore interface {
	// MarkProcessed reports true only for the caller that first marks key.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later MarkProcessed wins again.
	Release(ctx context.Context, key string) error
	Close() error
}

// IdempotencyConfig controls the event-handler dedupe wrapper
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig enables dedupe with DefaultIdempotencyTTL
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: DefaultIdempotencyTTL, Enabled: true}
}
