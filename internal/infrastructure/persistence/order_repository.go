package persistence

import (
	"context"
	"errors"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements order.OrderRepository using GORM.
// The lock methods only hold their locks when db is a transaction.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// LockKey makes sure the key row exists and locks it with SELECT ... FOR UPDATE.
// Concurrent reconciliations of the same key queue up here, including the
// very first ones when no order row exists yet.
func (r *GormOrderRepository) LockKey(ctx context.Context, key order.Key) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.ReconcileKeyModelFromDomain(key)).Error; err != nil {
		return err
	}

	var locked models.ReconcileKeyModel
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND external_order_id = ? AND test_order = ?", key.ShopID, key.ExternalOrderID, key.TestOrder).
		Take(&locked).Error
}

// FindForUpdate returns every order with the key, locked, oldest first
func (r *GormOrderRepository) FindForUpdate(ctx context.Context, key order.Key) ([]*order.Order, error) {
	var ms []models.OrderModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND external_order_id = ? AND test_order = ?", key.ShopID, key.ExternalOrderID, key.TestOrder).
		Order("id").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	orders := make([]*order.Order, len(ms))
	for i := range ms {
		orders[i] = ms[i].ToDomain()
	}
	return orders, nil
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new order
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Create(models.OrderModelFromDomain(o)).Error
}

// Save writes every column of an existing order
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Save(models.OrderModelFromDomain(o)).Error
}

// DeleteByIDs removes orders and everything hanging off them
func (r *GormOrderRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id IN ?", ids).Delete(&models.OrderTagLinkModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("order_id IN ?", ids).Delete(&models.OrderRowModel{}).Error; err != nil {
		return err
	}
	return db.Where("id IN ?", ids).Delete(&models.OrderModel{}).Error
}

var _ order.OrderRepository = (*GormOrderRepository)(nil)
