package models

import (
	"time"

	"github.com/erp/ordersync/internal/domain/order"
)

// CustomerDetailsModel is the persistence model for customer details.
// Billing and shipping addresses are flattened into prefixed columns.
type CustomerDetailsModel struct {
	ID                int64   `gorm:"primaryKey;autoIncrement:false"`
	Email             *string `gorm:"type:varchar(255)"`
	Phone             *string `gorm:"type:varchar(64)"`
	BillingFirstName  string  `gorm:"type:varchar(255);not null"`
	BillingLastName   string  `gorm:"type:varchar(255);not null"`
	BillingCompany    *string `gorm:"type:varchar(255)"`
	BillingAddress1   *string `gorm:"type:varchar(255)"`
	BillingAddress2   *string `gorm:"type:varchar(255)"`
	BillingPostcode   *string `gorm:"type:varchar(32)"`
	BillingCity       *string `gorm:"type:varchar(255)"`
	BillingState      *string `gorm:"type:varchar(64)"`
	BillingCountry    *string `gorm:"type:varchar(8)"`
	ShippingFirstName string  `gorm:"type:varchar(255);not null"`
	ShippingLastName  string  `gorm:"type:varchar(255);not null"`
	ShippingCompany   *string `gorm:"type:varchar(255)"`
	ShippingAddress1  *string `gorm:"type:varchar(255)"`
	ShippingAddress2  *string `gorm:"type:varchar(255)"`
	ShippingPostcode  *string `gorm:"type:varchar(32)"`
	ShippingCity      *string `gorm:"type:varchar(255)"`
	ShippingState     *string `gorm:"type:varchar(64)"`
	ShippingCountry   *string `gorm:"type:varchar(8)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerDetailsModel) TableName() string {
	return "customer_details"
}

// ToDomain converts the persistence model to domain CustomerDetails
func (m *CustomerDetailsModel) ToDomain() *order.CustomerDetails {
	return &order.CustomerDetails{
		ID:    m.ID,
		Email: m.Email,
		Phone: m.Phone,
		Billing: order.Address{
			FirstName: m.BillingFirstName,
			LastName:  m.BillingLastName,
			Company:   m.BillingCompany,
			Address1:  m.BillingAddress1,
			Address2:  m.BillingAddress2,
			Postcode:  m.BillingPostcode,
			City:      m.BillingCity,
			State:     m.BillingState,
			Country:   m.BillingCountry,
		},
		Shipping: order.Address{
			FirstName: m.ShippingFirstName,
			LastName:  m.ShippingLastName,
			Company:   m.ShippingCompany,
			Address1:  m.ShippingAddress1,
			Address2:  m.ShippingAddress2,
			Postcode:  m.ShippingPostcode,
			City:      m.ShippingCity,
			State:     m.ShippingState,
			Country:   m.ShippingCountry,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CustomerDetailsModelFromDomain creates a persistence model from domain CustomerDetails
func CustomerDetailsModelFromDomain(d *order.CustomerDetails) *CustomerDetailsModel {
	return &CustomerDetailsModel{
		ID:                d.ID,
		Email:             d.Email,
		Phone:             d.Phone,
		BillingFirstName:  d.Billing.FirstName,
		BillingLastName:   d.Billing.LastName,
		BillingCompany:    d.Billing.Company,
		BillingAddress1:   d.Billing.Address1,
		BillingAddress2:   d.Billing.Address2,
		BillingPostcode:   d.Billing.Postcode,
		BillingCity:       d.Billing.City,
		BillingState:      d.Billing.State,
		BillingCountry:    d.Billing.Country,
		ShippingFirstName: d.Shipping.FirstName,
		ShippingLastName:  d.Shipping.LastName,
		ShippingCompany:   d.Shipping.Company,
		ShippingAddress1:  d.Shipping.Address1,
		ShippingAddress2:  d.Shipping.Address2,
		ShippingPostcode:  d.Shipping.Postcode,
		ShippingCity:      d.Shipping.City,
		ShippingState:     d.Shipping.State,
		ShippingCountry:   d.Shipping.Country,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}
