package ordersync

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// hongKongPostcode replaces the shipping postcode of Hong Kong addresses,
// which have none
const hongKongPostcode = "HKSAR"

// Normalizer turns a raw webhook body into a typed order.NormalizedOrder
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer creates a Normalizer with the payload schema registered
func NewNormalizer() *Normalizer {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// a present key satisfies "required" even when its value is null
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if p, ok := field.Interface().(presentString); ok && p.Present {
			return "present"
		}
		return nil
	}, presentString{})
	return &Normalizer{validate: v}
}

// Normalize decodes and validates raw and maps it to the reconciliation input.
// Every failure wraps order.ErrMalformedPayload.
func (n *Normalizer) Normalize(raw []byte) (*order.NormalizedOrder, error) {
	var p orderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", order.ErrMalformedPayload, describeDecodeError(err))
	}
	// text columns cannot hold NUL; the raw payload keeps the \u0000 escape
	stripNUL(reflect.ValueOf(&p).Elem())
	if err := n.validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("%w: %s", order.ErrMalformedPayload, describeValidationError(err))
	}

	orderedAt, err := time.Parse(time.RFC3339, *p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at is not an RFC 3339 timestamp", order.ErrMalformedPayload)
	}

	tags := ""
	if p.Tags != nil {
		tags = *p.Tags
	}

	return &order.NormalizedOrder{
		Fields: order.Fields{
			ExternalOrderID:  int64(*p.ID),
			OrderNumber:      int64(*p.OrderNumber),
			OrderedAt:        orderedAt,
			Total:            *p.TotalPrice,
			Subtotal:         *p.SubtotalPrice,
			TotalTax:         *p.TotalTax,
			TotalDiscounts:   *p.TotalDiscounts,
			TotalShipping:    *p.TotalShippingPriceSet.ShopMoney.Amount,
			TotalShippingTax: shippingTax(p.ShippingLines),
			TestOrder:        *p.Test,
			PaymentMethod:    strings.Join(p.PaymentGatewayNames, ","),
			Comments:         p.Note,
			ManualInvoiceNo:  p.Name,
			RawPayload:       raw,
		},
		CurrencyCode: order.NormalizeCurrencyCode(*p.Currency),
		Customer:     customerDetails(&p),
		LineItems:    lineItems(p.LineItems),
		Tags:         tags,
		State:        order.StateFromSignals(nonEmpty(p.CancelledAt), nonEmpty(p.ClosedAt)),
	}, nil
}

// shippingTax sums every tax line of every shipping line
func shippingTax(lines []shippingLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		for _, tl := range line.TaxLines {
			total = total.Add(*tl.Price)
		}
	}
	return total
}

func customerDetails(p *orderPayload) order.CustomerDetails {
	billing := p.BillingAddress
	if billing == nil {
		billing = &address{}
	}
	shipping := p.ShippingAddress
	if shipping == nil {
		shipping = &address{}
	}

	email := p.Email.Value
	if p.Customer != nil && nonEmpty(p.Customer.Email) {
		email = p.Customer.Email
	}

	shippingAddr := toAddress(shipping)
	if shipping.CountryCode != nil && *shipping.CountryCode == "HK" {
		postcode := hongKongPostcode
		shippingAddr.Postcode = &postcode
	}

	return order.CustomerDetails{
		Email:    email,
		Phone:    firstNonEmpty(billing.Phone, shipping.Phone, p.Phone),
		Billing:  toAddress(billing),
		Shipping: shippingAddr,
	}
}

func toAddress(a *address) order.Address {
	return order.Address{
		FirstName: valueOr(a.FirstName, ""),
		LastName:  valueOr(a.LastName, ""),
		Company:   a.Company,
		Address1:  a.Address1,
		Address2:  a.Address2,
		Postcode:  a.Zip,
		City:      a.City,
		State:     a.ProvinceCode,
		Country:   a.CountryCode,
	}
}

func lineItems(items []lineItem) []order.LineItem {
	out := make([]order.LineItem, 0, len(items))
	for _, li := range items {
		item := order.LineItem{
			SKU:         valueOr(li.SKU, ""),
			Quantity:    1,
			Price:       decimal.Zero,
			PreTaxPrice: decimal.Zero,
			Name:        valueOr(li.Name, ""),
		}
		if li.Quantity != nil {
			item.Quantity = int(*li.Quantity)
		}
		if li.Price != nil {
			item.Price = *li.Price
		}
		if li.PreTaxPrice != nil {
			item.PreTaxPrice = *li.PreTaxPrice
		}
		if li.ProductID != nil {
			item.ProductID = int64(*li.ProductID)
		}
		for _, tl := range li.TaxLines {
			item.TaxLines = append(item.TaxLines, *tl.Price)
		}
		out = append(out, item)
	}
	return out
}

// stripNUL removes NUL characters from every string reachable through the
// exported fields of v
func stripNUL(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			stripNUL(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				stripNUL(f)
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			stripNUL(v.Index(i))
		}
	case reflect.String:
		if strings.ContainsRune(v.String(), 0) {
			v.SetString(strings.ReplaceAll(v.String(), "\x00", ""))
		}
	}
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func firstNonEmpty(candidates ...*string) *string {
	for _, c := range candidates {
		if nonEmpty(c) {
			return c
		}
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset)
	}
	return err.Error()
}

func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	return "missing or invalid fields: " + strings.Join(fields, ", ")
}
