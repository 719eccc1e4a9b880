package persistence

import (
	"context"
	"errors"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRowRepository implements order.OrderRowRepository using GORM
type GormOrderRowRepository struct {
	db *gorm.DB
}

// NewGormOrderRowRepository creates a new GormOrderRowRepository
func NewGormOrderRowRepository(db *gorm.DB) *GormOrderRowRepository {
	return &GormOrderRowRepository{db: db}
}

// DeleteByOrderID removes all rows of an order
func (r *GormOrderRowRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderRowModel{}).Error
}

// Create inserts a row
func (r *GormOrderRowRepository) Create(ctx context.Context, row *order.OrderRow) error {
	return r.db.WithContext(ctx).Create(models.OrderRowModelFromDomain(row)).Error
}

// FindByOrderID returns the rows of an order in insertion order
func (r *GormOrderRowRepository) FindByOrderID(ctx context.Context, orderID int64) ([]*order.OrderRow, error) {
	var ms []models.OrderRowModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&ms).Error; err != nil {
		return nil, err
	}
	rows := make([]*order.OrderRow, len(ms))
	for i := range ms {
		rows[i] = ms[i].ToDomain()
	}
	return rows, nil
}

// GormTagLinkRepository implements order.TagLinkRepository using GORM
type GormTagLinkRepository struct {
	db *gorm.DB
}

// NewGormTagLinkRepository creates a new GormTagLinkRepository
func NewGormTagLinkRepository(db *gorm.DB) *GormTagLinkRepository {
	return &GormTagLinkRepository{db: db}
}

// DeleteByOrderID removes all tag links of an order
func (r *GormTagLinkRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderTagLinkModel{}).Error
}

// Create inserts a tag link
func (r *GormTagLinkRepository) Create(ctx context.Context, link *order.TagLink) error {
	return r.db.WithContext(ctx).Create(&models.OrderTagLinkModel{
		ID:      link.ID,
		OrderID: link.OrderID,
		TagID:   link.TagID,
	}).Error
}

// FindTagNames returns the names of the tags linked to an order, in link order
func (r *GormTagLinkRepository) FindTagNames(ctx context.Context, orderID int64) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).
		Model(&models.OrderTagLinkModel{}).
		Joins("JOIN order_tags ON order_tags.id = order_tag_links.tag_id").
		Where("order_tag_links.order_id = ?", orderID).
		Order("order_tag_links.id").
		Pluck("order_tags.name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// GormCustomerDetailsRepository implements order.CustomerDetailsRepository using GORM
type GormCustomerDetailsRepository struct {
	db *gorm.DB
}

// NewGormCustomerDetailsRepository creates a new GormCustomerDetailsRepository
func NewGormCustomerDetailsRepository(db *gorm.DB) *GormCustomerDetailsRepository {
	return &GormCustomerDetailsRepository{db: db}
}

// Create inserts customer details
func (r *GormCustomerDetailsRepository) Create(ctx context.Context, details *order.CustomerDetails) error {
	return r.db.WithContext(ctx).Create(models.CustomerDetailsModelFromDomain(details)).Error
}

// Save overwrites stored customer details, keeping the creation time
func (r *GormCustomerDetailsRepository) Save(ctx context.Context, details *order.CustomerDetails) error {
	return r.db.WithContext(ctx).Omit("created_at").Save(models.CustomerDetailsModelFromDomain(details)).Error
}

// FindByID finds customer details by ID
func (r *GormCustomerDetailsRepository) FindByID(ctx context.Context, id int64) (*order.CustomerDetails, error) {
	var model models.CustomerDetailsModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var (
	_ order.OrderRowRepository        = (*GormOrderRowRepository)(nil)
	_ order.TagLinkRepository         = (*GormTagLinkRepository)(nil)
	_ order.CustomerDetailsRepository = (*GormCustomerDetailsRepository)(nil)
)
