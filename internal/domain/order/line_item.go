package order

import "github.com/shopspring/decimal"

// LineItem is one normalized platform line item
type LineItem struct {
	SKU         string
	Quantity    int
	Price       decimal.Decimal
	PreTaxPrice decimal.Decimal
	TaxLines    []decimal.Decimal
	Name        string
	ProductID   int64
}

// HasSKU reports whether the item references a package
func (li LineItem) HasSKU() bool {
	return li.SKU != ""
}

// Tax is the sum of the item's tax line prices
func (li LineItem) Tax() decimal.Decimal {
	return decimal.Sum(decimal.Zero, li.TaxLines...)
}

// OrderRow is one persisted line of an order
type OrderRow struct {
	ID          int64
	OrderID     int64
	PackageID   int64
	Count       int
	Total       decimal.Decimal
	Subtotal    decimal.Decimal
	SubtotalTax decimal.Decimal
	Tax         decimal.Decimal
	Name        string
	ProductID   int64
}

// NewOrderRow builds a row from a line item: tax is the sum of its tax lines
// and total is the pre-tax price plus tax.
func NewOrderRow(id, orderID, packageID int64, item LineItem) *OrderRow {
	tax := item.Tax()
	return &OrderRow{
		ID:          id,
		OrderID:     orderID,
		PackageID:   packageID,
		Count:       item.Quantity,
		Total:       item.PreTaxPrice.Add(tax),
		Subtotal:    item.Price,
		SubtotalTax: decimal.Zero,
		Tax:         tax,
		Name:        item.Name,
		ProductID:   item.ProductID,
	}
}
