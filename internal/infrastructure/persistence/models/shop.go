package models

import (
	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
)

// ShopModel is the persistence model for a shop
type ShopModel struct {
	BaseModel
	Domain       string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name         string `gorm:"type:varchar(255);not null"`
	SharedSecret string `gorm:"type:varchar(255);not null"`
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// ToDomain converts the persistence model to a domain Shop
func (m *ShopModel) ToDomain() *order.Shop {
	return &order.Shop{
		ID:           m.ID,
		Domain:       m.Domain,
		Name:         m.Name,
		SharedSecret: m.SharedSecret,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Shop
func (m *ShopModel) FromDomain(s *order.Shop) {
	m.FromDomainBaseEntity(shared.BaseEntity{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt})
	m.Domain = s.Domain
	m.Name = s.Name
	m.SharedSecret = s.SharedSecret
}

// ShopModelFromDomain creates a new persistence model from a domain Shop
func ShopModelFromDomain(s *order.Shop) *ShopModel {
	m := &ShopModel{}
	m.FromDomain(s)
	return m
}
