package ordersync

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testShopDomain = "acme.myshopify.com"

var fixedNow = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

type sequentialIDs struct {
	next atomic.Int64
}

func (s *sequentialIDs) NextID() int64 {
	return s.next.Add(1)
}

type stubWarehouse struct {
	mu    sync.Mutex
	code  string
	err   error
	calls int
}

func (w *stubWarehouse) Recommend(_ context.Context, _ *order.Order) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.code, w.err
}

func (w *stubWarehouse) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// store is an in-memory SQLite database with the full schema and one shop
type store struct {
	db   *gorm.DB
	ids  *sequentialIDs
	shop *order.Shop
}

func newStore(t *testing.T) *store {
	t.Helper()

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.AutoMigrate())

	s := &store{db: database.DB, ids: &sequentialIDs{}}
	s.ids.next.Store(1000)

	s.shop = order.NewShop(1, testShopDomain, "Acme", "topsecret")
	require.NoError(t, persistence.NewGormShopRepository(s.db).Create(context.Background(), s.shop))
	return s
}

func (s *store) reconciler(cfg ReconcilerConfig) *Reconciler {
	cfg.Scope = persistence.NewGormReconcileScope(s.db, s.ids)
	cfg.IDs = s.ids
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return fixedNow }
	}
	return NewReconciler(cfg)
}

func (s *store) orders(t *testing.T) []models.OrderModel {
	t.Helper()
	var ms []models.OrderModel
	require.NoError(t, s.db.Order("id").Find(&ms).Error)
	return ms
}

func (s *store) rows(t *testing.T, orderID int64) []*order.OrderRow {
	t.Helper()
	rows, err := persistence.NewGormOrderRowRepository(s.db).FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return rows
}

func (s *store) tags(t *testing.T, orderID int64) []string {
	t.Helper()
	names, err := persistence.NewGormTagLinkRepository(s.db).FindTagNames(context.Background(), orderID)
	require.NoError(t, err)
	return names
}

func (s *store) customer(t *testing.T, id int64) *order.CustomerDetails {
	t.Helper()
	details, err := persistence.NewGormCustomerDetailsRepository(s.db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return details
}

func (s *store) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(model).Count(&n).Error)
	return n
}

// orderBody returns a valid order webhook body; mutate edits the decoded
// document before it is encoded again
func orderBody(t *testing.T, mutate func(doc map[string]any)) []byte {
	t.Helper()
	doc := map[string]any{
		"id":              4242,
		"created_at":      "2024-03-01T10:15:00Z",
		"total_price":     "30.00",
		"subtotal_price":  "25.00",
		"total_tax":       "5.00",
		"total_discounts": "0.00",
		"currency":        "EUR",
		"test":            false,
		"order_number":    1001,
		"email":           "buyer@example.com",
		"tags":            "vip, wholesale",
		"total_shipping_price_set": map[string]any{
			"shop_money": map[string]any{"amount": "5.00"},
		},
		"line_items": []any{
			map[string]any{"sku": "PLAN-12M-25.00", "quantity": 1, "price": "25.00", "pre_tax_price": "25.00",
				"tax_lines": []any{map[string]any{"price": "5.00"}}, "name": "Annual plan", "product_id": 77},
		},
		"billing_address": map[string]any{
			"first_name": "Ada", "last_name": "Lovelace", "city": "London", "country_code": "GB",
		},
		"payment_gateway_names": []any{"manual"},
	}
	if mutate != nil {
		mutate(doc)
	}
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	return body
}

func normalize(t *testing.T, body []byte) *order.NormalizedOrder {
	t.Helper()
	payload, err := NewNormalizer().Normalize(body)
	require.NoError(t, err)
	return payload
}
