package ordersync

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockShopRepository struct {
	mock.Mock
}

func (m *mockShopRepository) FindByDomain(ctx context.Context, domain string) (*order.Shop, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Shop), args.Error(1)
}

func (m *mockShopRepository) Create(ctx context.Context, shop *order.Shop) error {
	return m.Called(ctx, shop).Error(0)
}

func (m *mockShopRepository) Save(ctx context.Context, shop *order.Shop) error {
	return m.Called(ctx, shop).Error(0)
}

func (m *mockShopRepository) List(ctx context.Context) ([]*order.Shop, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*order.Shop), args.Error(1)
}

func TestComputeSignature(t *testing.T) {
	// echo -n '{"id":1}' | openssl dgst -sha256 -hmac secret -binary | base64
	assert.Equal(t, "A971iWIMgT8Zj9A9eWfikrFj7wQ16/Qwcc4OlRl2PLc=", ComputeSignature("secret", []byte(`{"id":1}`)))
}

func TestSignatureVerifier_Verify(t *testing.T) {
	body := []byte(`{"id":1}`)
	shop := order.NewShop(7, testShopDomain, "Acme", "secret")

	t.Run("accepts a valid signature", func(t *testing.T) {
		shops := new(mockShopRepository)
		shops.On("FindByDomain", mock.Anything, testShopDomain).Return(shop, nil)

		got, err := NewSignatureVerifier(shops).Verify(context.Background(), body, testShopDomain, ComputeSignature("secret", body))
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
		shops.AssertExpectations(t)
	})

	t.Run("rejects a signature over a different body", func(t *testing.T) {
		shops := new(mockShopRepository)
		shops.On("FindByDomain", mock.Anything, testShopDomain).Return(shop, nil)

		_, err := NewSignatureVerifier(shops).Verify(context.Background(), body, testShopDomain, ComputeSignature("secret", []byte(`{"id":2}`)))
		assert.ErrorIs(t, err, order.ErrUnauthenticated)
	})

	t.Run("rejects a signature made with another secret", func(t *testing.T) {
		shops := new(mockShopRepository)
		shops.On("FindByDomain", mock.Anything, testShopDomain).Return(shop, nil)

		_, err := NewSignatureVerifier(shops).Verify(context.Background(), body, testShopDomain, ComputeSignature("other", body))
		assert.ErrorIs(t, err, order.ErrUnauthenticated)
	})

	t.Run("unknown shop is unauthenticated", func(t *testing.T) {
		shops := new(mockShopRepository)
		shops.On("FindByDomain", mock.Anything, "nobody.myshopify.com").Return(nil, shared.ErrNotFound)

		_, err := NewSignatureVerifier(shops).Verify(context.Background(), body, "nobody.myshopify.com", "x")
		assert.ErrorIs(t, err, order.ErrUnauthenticated)
	})

	t.Run("shop without secret accepts any signature", func(t *testing.T) {
		open := order.NewShop(8, "open.myshopify.com", "Open", "")
		shops := new(mockShopRepository)
		shops.On("FindByDomain", mock.Anything, "open.myshopify.com").Return(open, nil)

		got, err := NewSignatureVerifier(shops).Verify(context.Background(), body, "open.myshopify.com", "anything")
		require.NoError(t, err)
		assert.Equal(t, int64(8), got.ID)
	})

	t.Run("lookup failure is not an authentication error", func(t *testing.T) {
		shops := new(mockShopRepository)
		shops.On("FindByDomain", mock.Anything, testShopDomain).Return(nil, errors.New("connection refused"))

		_, err := NewSignatureVerifier(shops).Verify(context.Background(), body, testShopDomain, "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, order.ErrUnauthenticated)
	})
}
