package ordersync

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
)

// SignatureVerifier authenticates webhook bodies against the shop's shared secret
type SignatureVerifier struct {
	shops order.ShopRepository
}

// NewSignatureVerifier creates a new SignatureVerifier
func NewSignatureVerifier(shops order.ShopRepository) *SignatureVerifier {
	return &SignatureVerifier{shops: shops}
}

// Verify resolves the shop for domain and checks that signature is the
// base64 HMAC-SHA256 of body under the shop's secret. A shop without a
// secret accepts any signature.
func (v *SignatureVerifier) Verify(ctx context.Context, body []byte, domain, signature string) (*order.Shop, error) {
	shop, err := v.resolveShop(ctx, domain)
	if err != nil {
		return nil, err
	}
	if !shop.HasSecret() {
		return shop, nil
	}

	expected := ComputeSignature(shop.SharedSecret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("%w: signature mismatch for %s", order.ErrUnauthenticated, shop.Domain)
	}
	return shop, nil
}

// resolveShop looks the shop up without checking any signature
func (v *SignatureVerifier) resolveShop(ctx context.Context, domain string) (*order.Shop, error) {
	shop, err := v.shops.FindByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown shop %q", order.ErrUnauthenticated, domain)
		}
		return nil, fmt.Errorf("failed to look up shop: %w", err)
	}
	return shop, nil
}

// ComputeSignature returns base64(HMAC-SHA256(secret, body)), the value the
// platform sends in X-Shopify-Hmac-Sha256
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
