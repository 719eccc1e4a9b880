package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ordersync/internal/domain/shared"
)

// MemoryDeliveryLedger keeps delivery IDs in process memory.
// Suitable for a single instance and for tests.
type MemoryDeliveryLedger struct {
	mu        sync.RWMutex
	expiry    map[string]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryDeliveryLedger creates a ledger that sweeps expired IDs every interval
func NewMemoryDeliveryLedger(sweepInterval time.Duration) *MemoryDeliveryLedger {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	l := &MemoryDeliveryLedger{
		expiry:   make(map[string]time.Time),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.sweepLoop(sweepInterval)

	return l
}

// MarkProcessed records a delivery. Returns false if it was already recorded.
func (l *MemoryDeliveryLedger) MarkProcessed(_ context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.expiry[deliveryID]; ok && now.Before(exp) {
		return false, nil
	}
	l.expiry[deliveryID] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether an unexpired record exists for the delivery
func (l *MemoryDeliveryLedger) IsProcessed(_ context.Context, deliveryID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	exp, ok := l.expiry[deliveryID]
	return ok && l.now().Before(exp), nil
}

// Close stops the sweeper. Safe to call multiple times.
func (l *MemoryDeliveryLedger) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

// Len returns the number of recorded deliveries, expired or not
func (l *MemoryDeliveryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.expiry)
}

func (l *MemoryDeliveryLedger) sweepLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *MemoryDeliveryLedger) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, exp := range l.expiry {
		if !now.Before(exp) {
			delete(l.expiry, id)
		}
	}
}

var _ shared.IdempotencyStore = (*MemoryDeliveryLedger)(nil)
