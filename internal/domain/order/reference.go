package order

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholder package for line items that cannot be matched to a SKU
const (
	UnknownPackageName       = "Unknown"
	UnknownPackageIdentifier = "unknown-package"
)

// Currency is a shared lookup keyed by its trimmed code
type Currency struct {
	ID   int64
	Name string
}

// Package is a sellable product keyed by SKU
type Package struct {
	ID         int64
	Identifier string
	Name       string
	Price      decimal.Decimal
	IsPhysical bool
}

// NewPackageFromSKU creates the package record for an unseen SKU. The price is
// taken from the segment after the last hyphen, the name is the SKU itself
// and the package is not physical until someone says otherwise.
func NewPackageFromSKU(id int64, sku string) *Package {
	return &Package{
		ID:         id,
		Identifier: sku,
		Name:       sku,
		Price:      PriceFromSKU(sku),
		IsPhysical: false,
	}
}

// NewUnknownPackage creates the placeholder package
func NewUnknownPackage(id int64) *Package {
	return &Package{
		ID:         id,
		Identifier: UnknownPackageIdentifier,
		Name:       UnknownPackageName,
		Price:      decimal.Zero,
	}
}

// PriceFromSKU parses the numeric suffix after the last hyphen of a SKU,
// e.g. "PLAN-12M-49.90" -> 49.90. A non-numeric suffix yields zero.
func PriceFromSKU(sku string) decimal.Decimal {
	suffix := sku
	if i := strings.LastIndex(sku, "-"); i >= 0 {
		suffix = sku[i+1:]
	}
	price, err := decimal.NewFromString(strings.TrimSpace(suffix))
	if err != nil {
		return decimal.Zero
	}
	return price
}

// NormalizeCurrencyCode trims whitespace; case is preserved
func NormalizeCurrencyCode(code string) string {
	return strings.TrimSpace(code)
}

// Tag is a free-form order label
type Tag struct {
	ID   int64
	Name string
}

// TagLink associates an order with a tag
type TagLink struct {
	ID      int64
	OrderID int64
	TagID   int64
}

// SplitTags splits the platform's comma separated tag string and trims each
// token. Empty tokens are kept, so "" yields one empty tag name.
func SplitTags(tags string) []string {
	parts := strings.Split(tags, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// ReferenceResolver finds or creates shared lookup entities. Every method is
// safe to call concurrently for the same key and never creates duplicates.
type ReferenceResolver interface {
	ResolveCurrency(ctx context.Context, code string) (*Currency, error)
	ResolvePackage(ctx context.Context, sku string) (*Package, error)
	ResolveUnknownPackage(ctx context.Context) (*Package, error)
	ResolveTag(ctx context.Context, name string) (*Tag, error)
}
