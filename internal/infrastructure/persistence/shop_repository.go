package persistence

import (
	"context"
	"errors"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormShopRepository implements order.ShopRepository using GORM
type GormShopRepository struct {
	db *gorm.DB
}

// NewGormShopRepository creates a new GormShopRepository
func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// FindByDomain finds a shop by its platform domain
func (r *GormShopRepository) FindByDomain(ctx context.Context, domain string) (*order.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).
		Where("domain = ?", order.NormalizeDomain(domain)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new shop. Returns shared.ErrAlreadyExists if the domain is taken.
func (r *GormShopRepository) Create(ctx context.Context, shop *order.Shop) error {
	if err := r.db.WithContext(ctx).Create(models.ShopModelFromDomain(shop)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates an existing shop
func (r *GormShopRepository) Save(ctx context.Context, shop *order.Shop) error {
	return r.db.WithContext(ctx).Save(models.ShopModelFromDomain(shop)).Error
}

// List returns all shops ordered by domain
func (r *GormShopRepository) List(ctx context.Context) ([]*order.Shop, error) {
	var ms []models.ShopModel
	if err := r.db.WithContext(ctx).Order("domain").Find(&ms).Error; err != nil {
		return nil, err
	}
	shops := make([]*order.Shop, len(ms))
	for i := range ms {
		shops[i] = ms[i].ToDomain()
	}
	return shops, nil
}

var _ order.ShopRepository = (*GormShopRepository)(nil)
