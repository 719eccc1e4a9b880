package persistence

import (
	"context"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"gorm.io/gorm"
)

// GormReconcileScope implements order.ReconcileScope using GORM transactions.
// Every repository handed to fn is bound to the same transaction.
type GormReconcileScope struct {
	db  *gorm.DB
	ids shared.IDGenerator
}

// NewGormReconcileScope creates a new GormReconcileScope
func NewGormReconcileScope(db *gorm.DB, ids shared.IDGenerator) *GormReconcileScope {
	return &GormReconcileScope{db: db, ids: ids}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn succeeds, the transaction is committed.
func (s *GormReconcileScope) Execute(ctx context.Context, fn func(repos order.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(order.Repositories{
			Orders:    NewGormOrderRepository(tx),
			Customers: NewGormCustomerDetailsRepository(tx),
			Rows:      NewGormOrderRowRepository(tx),
			TagLinks:  NewGormTagLinkRepository(tx),
			Reference: NewGormReferenceRepository(tx, s.ids),
		})
	})
}

var _ order.ReconcileScope = (*GormReconcileScope)(nil)
