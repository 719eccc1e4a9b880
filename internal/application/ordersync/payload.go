package ordersync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// orderPayload is the subset of the platform order resource the service reads.
// Pointer fields distinguish absent from zero; validation tags mark the
// fields without which an order cannot be reconciled.
type orderPayload struct {
	ID                    *flexInt         `json:"id" validate:"required"`
	CreatedAt             *string          `json:"created_at" validate:"required"`
	TotalPrice            *decimal.Decimal `json:"total_price" validate:"required"`
	SubtotalPrice         *decimal.Decimal `json:"subtotal_price" validate:"required"`
	TotalTax              *decimal.Decimal `json:"total_tax" validate:"required"`
	TotalDiscounts        *decimal.Decimal `json:"total_discounts" validate:"required"`
	TotalShippingPriceSet *priceSet        `json:"total_shipping_price_set" validate:"required"`
	Currency              *string          `json:"currency" validate:"required"`
	Test                  *bool            `json:"test" validate:"required"`
	OrderNumber           *flexInt         `json:"order_number" validate:"required"`
	Email                 presentString    `json:"email" validate:"required"`

	Phone               *string         `json:"phone"`
	Note                *string         `json:"note"`
	Name                *string         `json:"name"`
	Tags                *string         `json:"tags"`
	CancelledAt         *string         `json:"cancelled_at"`
	ClosedAt            *string         `json:"closed_at"`
	PaymentGatewayNames []string        `json:"payment_gateway_names"`
	ShippingLines       []shippingLine  `json:"shipping_lines" validate:"dive"`
	LineItems           []lineItem      `json:"line_items" validate:"dive"`
	Customer            *customerRecord `json:"customer"`
	BillingAddress      *address        `json:"billing_address"`
	ShippingAddress     *address        `json:"shipping_address"`
}

type priceSet struct {
	ShopMoney *money `json:"shop_money" validate:"required"`
}

type money struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

type taxLine struct {
	Price *decimal.Decimal `json:"price" validate:"required"`
}

type shippingLine struct {
	TaxLines []taxLine `json:"tax_lines" validate:"dive"`
}

type lineItem struct {
	SKU         *string          `json:"sku"`
	Quantity    *flexInt         `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	PreTaxPrice *decimal.Decimal `json:"pre_tax_price"`
	TaxLines    []taxLine        `json:"tax_lines" validate:"dive"`
	Name        *string          `json:"name"`
	ProductID   *flexInt         `json:"product_id"`
}

type customerRecord struct {
	Email *string `json:"email"`
}

type address struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Company      *string `json:"company"`
	Address1     *string `json:"address1"`
	Address2     *string `json:"address2"`
	Zip          *string `json:"zip"`
	City         *string `json:"city"`
	ProvinceCode *string `json:"province_code"`
	CountryCode  *string `json:"country_code"`
	Phone        *string `json:"phone"`
}

// flexInt accepts a JSON integer or a string holding one
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(data, `"`)
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("expected an integer, got %s", data)
	}
	*f = flexInt(n)
	return nil
}

// presentString records whether its key appeared in the document, so that
// a required key may still carry null
type presentString struct {
	Present bool
	Value   *string
}

func (p *presentString) UnmarshalJSON(data []byte) error {
	p.Present = true
	if bytes.Equal(data, []byte("null")) {
		p.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a string or null, got %s", data)
	}
	p.Value = &s
	return nil
}
