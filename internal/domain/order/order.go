package order

import (
	"time"

	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Fields holds every order attribute the platform payload is authoritative for.
// Reconciliation overwrites all of them on every delivery.
type Fields struct {
	ExternalOrderID  int64
	OrderNumber      int64
	OrderedAt        time.Time
	Total            decimal.Decimal
	Subtotal         decimal.Decimal
	TotalTax         decimal.Decimal
	TotalDiscounts   decimal.Decimal
	TotalShipping    decimal.Decimal
	TotalShippingTax decimal.Decimal
	TestOrder        bool
	PaymentMethod    string
	Comments         *string
	ManualInvoiceNo  *string
	RawPayload       []byte
}

// Key identifies the order a payload reconciles into
type Key struct {
	ShopID          int64
	ExternalOrderID int64
	TestOrder       bool
}

// Order is the aggregate root of the ingestion context
type Order struct {
	shared.BaseEntity
	Fields

	ShopID            int64
	CurrencyID        int64
	State             State
	PaymentDate       *time.Time
	Warehouse         *string
	CustomerDetailsID *int64
}

// NewOrder creates an order from a first delivery. The initial state is the
// desired state when one was derived, processing otherwise.
func NewOrder(id, shopID, currencyID int64, fields Fields, desired State) *Order {
	state := desired
	if !state.IsSet() {
		state = StateProcessing
	}
	return &Order{
		BaseEntity: shared.NewBaseEntity(id),
		Fields:     fields,
		ShopID:     shopID,
		CurrencyID: currencyID,
		State:      state,
	}
}

// Key returns the reconciliation key of the order
func (o *Order) Key() Key {
	return Key{ShopID: o.ShopID, ExternalOrderID: o.ExternalOrderID, TestOrder: o.TestOrder}
}

// Apply overwrites every payload-owned field
func (o *Order) Apply(fields Fields, currencyID int64) {
	o.Fields = fields
	o.CurrencyID = currencyID
	o.UpdatedAt = time.Now()
}

// TransitionTo moves the order to desired when it is set and differs from the
// current state. Returns true if the state changed.
func (o *Order) TransitionTo(desired State) bool {
	if !desired.IsSet() || desired == o.State {
		return false
	}
	o.State = desired
	o.UpdatedAt = time.Now()
	return true
}

// HasCustomerDetails reports whether contact details are attached
func (o *Order) HasCustomerDetails() bool {
	return o.CustomerDetailsID != nil
}

// AttachCustomerDetails links a customer details record
func (o *Order) AttachCustomerDetails(id int64) {
	o.CustomerDetailsID = &id
}

// HasWarehouse reports whether a warehouse is assigned
func (o *Order) HasWarehouse() bool {
	return o.Warehouse != nil && *o.Warehouse != ""
}

// AssignWarehouse sets the fulfilling warehouse. An empty code leaves it unassigned.
func (o *Order) AssignWarehouse(code string) {
	if code == "" {
		return
	}
	o.Warehouse = &code
}

// MarkPaidIfDue stamps the payment date when none is recorded and the order
// total is non-zero. Returns true if the date was set.
func (o *Order) MarkPaidIfDue(now time.Time) bool {
	if o.PaymentDate != nil || o.Total.IsZero() {
		return false
	}
	o.PaymentDate = &now
	return true
}
