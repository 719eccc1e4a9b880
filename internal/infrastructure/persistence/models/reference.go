package models

import (
	"github.com/erp/ordersync/internal/domain/order"
	"github.com/shopspring/decimal"
)

// CurrencyModel is the persistence model for a currency
type CurrencyModel struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"type:varchar(64);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (CurrencyModel) TableName() string {
	return "currencies"
}

// ToDomain converts the persistence model to a domain Currency
func (m *CurrencyModel) ToDomain() *order.Currency {
	return &order.Currency{ID: m.ID, Name: m.Name}
}

// PackageModel is the persistence model for a package (product keyed by SKU)
type PackageModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement:false"`
	Identifier string          `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name       string          `gorm:"type:varchar(255);not null"`
	Price      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	IsPhysical bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PackageModel) TableName() string {
	return "packages"
}

// ToDomain converts the persistence model to a domain Package
func (m *PackageModel) ToDomain() *order.Package {
	return &order.Package{
		ID:         m.ID,
		Identifier: m.Identifier,
		Name:       m.Name,
		Price:      m.Price,
		IsPhysical: m.IsPhysical,
	}
}

// PackageModelFromDomain creates a persistence model from a domain Package
func PackageModelFromDomain(p *order.Package) *PackageModel {
	return &PackageModel{
		ID:         p.ID,
		Identifier: p.Identifier,
		Name:       p.Name,
		Price:      p.Price,
		IsPhysical: p.IsPhysical,
	}
}

// OrderTagModel is the persistence model for an order tag
type OrderTagModel struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (OrderTagModel) TableName() string {
	return "order_tags"
}

// ToDomain converts the persistence model to a domain Tag
func (m *OrderTagModel) ToDomain() *order.Tag {
	return &order.Tag{ID: m.ID, Name: m.Name}
}

// All returns every model managed by this service, in dependency order.
// Used by AutoMigrate in tests and development setups.
func All() []any {
	return []any{
		&ShopModel{},
		&CurrencyModel{},
		&PackageModel{},
		&OrderTagModel{},
		&CustomerDetailsModel{},
		&ReconcileKeyModel{},
		&OrderModel{},
		&OrderRowModel{},
		&OrderTagLinkModel{},
	}
}
