package cache

import (
	"context"

	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewDeliveryLedger returns the Redis ledger when Redis is enabled and
// reachable. Otherwise it falls back to the in-memory ledger, which does not
// share state across instances.
func NewDeliveryLedger(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) shared.IdempotencyStore {
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-memory delivery ledger")
		return NewMemoryDeliveryLedger(0)
	}

	ledger, err := DialRedisDeliveryLedger(ctx, cfg.RedisAddr(), cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory delivery ledger. "+
			"Redeliveries to other instances will be reconciled again.",
			zap.Error(err),
		)
		return NewMemoryDeliveryLedger(0)
	}

	logger.Info("Using Redis delivery ledger", zap.String("addr", cfg.RedisAddr()))
	return ledger
}
