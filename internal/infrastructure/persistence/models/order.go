package models

import (
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderModel is the persistence model for the Order aggregate root.
// The key index is deliberately not unique: duplicates written by older
// deployments are collapsed during reconciliation.
type OrderModel struct {
	BaseModel
	ShopID            int64           `gorm:"not null;index:idx_orders_key,priority:1"`
	ExternalOrderID   int64           `gorm:"not null;index:idx_orders_key,priority:2"`
	TestOrder         bool            `gorm:"not null;index:idx_orders_key,priority:3"`
	OrderNumber       int64           `gorm:"not null"`
	OrderedAt         time.Time       `gorm:"not null"`
	Total             decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TotalTax          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TotalDiscounts    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TotalShipping     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TotalShippingTax  decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CurrencyID        int64           `gorm:"not null;index"`
	PaymentMethod     string          `gorm:"type:varchar(255);not null"`
	State             string          `gorm:"type:varchar(20);not null"`
	PaymentDate       *time.Time
	Warehouse         *string `gorm:"type:varchar(64)"`
	Comments          *string `gorm:"type:text"`
	ManualInvoiceNo   *string `gorm:"type:varchar(255)"`
	CustomerDetailsID *int64
	RawPayload        datatypes.JSON `gorm:"type:json"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	return &order.Order{
		BaseEntity: m.BaseModel.ToDomain(),
		Fields: order.Fields{
			ExternalOrderID:  m.ExternalOrderID,
			OrderNumber:      m.OrderNumber,
			OrderedAt:        m.OrderedAt,
			Total:            m.Total,
			Subtotal:         m.Subtotal,
			TotalTax:         m.TotalTax,
			TotalDiscounts:   m.TotalDiscounts,
			TotalShipping:    m.TotalShipping,
			TotalShippingTax: m.TotalShippingTax,
			TestOrder:        m.TestOrder,
			PaymentMethod:    m.PaymentMethod,
			Comments:         m.Comments,
			ManualInvoiceNo:  m.ManualInvoiceNo,
			RawPayload:       []byte(m.RawPayload),
		},
		ShopID:            m.ShopID,
		CurrencyID:        m.CurrencyID,
		State:             order.State(m.State),
		PaymentDate:       m.PaymentDate,
		Warehouse:         m.Warehouse,
		CustomerDetailsID: m.CustomerDetailsID,
	}
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainBaseEntity(o.BaseEntity)
	m.ShopID = o.ShopID
	m.ExternalOrderID = o.ExternalOrderID
	m.TestOrder = o.TestOrder
	m.OrderNumber = o.OrderNumber
	m.OrderedAt = o.OrderedAt
	m.Total = o.Total
	m.Subtotal = o.Subtotal
	m.TotalTax = o.TotalTax
	m.TotalDiscounts = o.TotalDiscounts
	m.TotalShipping = o.TotalShipping
	m.TotalShippingTax = o.TotalShippingTax
	m.CurrencyID = o.CurrencyID
	m.PaymentMethod = o.PaymentMethod
	m.State = o.State.String()
	m.PaymentDate = o.PaymentDate
	m.Warehouse = o.Warehouse
	m.Comments = o.Comments
	m.ManualInvoiceNo = o.ManualInvoiceNo
	m.CustomerDetailsID = o.CustomerDetailsID
	m.RawPayload = datatypes.JSON(o.RawPayload)
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderRowModel is the persistence model for one order line
type OrderRowModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement:false"`
	OrderID     int64           `gorm:"not null;index"`
	PackageID   int64           `gorm:"not null;index"`
	Count       int             `gorm:"column:cnt;not null"`
	Total       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	SubtotalTax decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Tax         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Name        string          `gorm:"type:varchar(512);not null"`
	ProductID   int64           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderRowModel) TableName() string {
	return "order_rows"
}

// ToDomain converts the persistence model to a domain OrderRow
func (m *OrderRowModel) ToDomain() *order.OrderRow {
	return &order.OrderRow{
		ID:          m.ID,
		OrderID:     m.OrderID,
		PackageID:   m.PackageID,
		Count:       m.Count,
		Total:       m.Total,
		Subtotal:    m.Subtotal,
		SubtotalTax: m.SubtotalTax,
		Tax:         m.Tax,
		Name:        m.Name,
		ProductID:   m.ProductID,
	}
}

// OrderRowModelFromDomain creates a persistence model from a domain OrderRow
func OrderRowModelFromDomain(r *order.OrderRow) *OrderRowModel {
	return &OrderRowModel{
		ID:          r.ID,
		OrderID:     r.OrderID,
		PackageID:   r.PackageID,
		Count:       r.Count,
		Total:       r.Total,
		Subtotal:    r.Subtotal,
		SubtotalTax: r.SubtotalTax,
		Tax:         r.Tax,
		Name:        r.Name,
		ProductID:   r.ProductID,
	}
}

// OrderTagLinkModel links an order to a tag. Not unique: a tag listed
// twice in the payload is linked twice.
type OrderTagLinkModel struct {
	ID      int64 `gorm:"primaryKey;autoIncrement:false"`
	OrderID int64 `gorm:"not null;index"`
	TagID   int64 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (OrderTagLinkModel) TableName() string {
	return "order_tag_links"
}

// ReconcileKeyModel is the lock row serializing reconciliations of one key.
// It exists independently of the orders so that a first delivery has
// something to lock before any order row is written.
type ReconcileKeyModel struct {
	ShopID          int64 `gorm:"primaryKey;autoIncrement:false"`
	ExternalOrderID int64 `gorm:"primaryKey;autoIncrement:false"`
	TestOrder       bool  `gorm:"primaryKey"`
	CreatedAt       time.Time
}

// TableName returns the table name for GORM
func (ReconcileKeyModel) TableName() string {
	return "order_reconcile_keys"
}

// ReconcileKeyModelFromDomain creates the lock row for a key
func ReconcileKeyModelFromDomain(k order.Key) *ReconcileKeyModel {
	return &ReconcileKeyModel{
		ShopID:          k.ShopID,
		ExternalOrderID: k.ExternalOrderID,
		TestOrder:       k.TestOrder,
	}
}
