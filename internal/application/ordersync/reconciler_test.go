package ordersync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconcile(t *testing.T, r *Reconciler, s *store, body []byte) (*ReconcileResult, error) {
	t.Helper()
	payload := normalize(t, body)
	return r.Reconcile(context.Background(), s.shop, payload, payload.State)
}

func TestReconciler_FirstDeliveryCreatesOrder(t *testing.T) {
	s := newStore(t)
	wh := &stubWarehouse{code: "AMS-1"}
	r := s.reconciler(ReconcilerConfig{Warehouse: wh})

	result, err := reconcile(t, r, s, orderBody(t, nil))
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, 2, result.Tags)
	assert.True(t, result.WarehouseAssigned)
	assert.True(t, result.PaymentDateSet)

	orders := s.orders(t)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, result.Order.ID, o.ID)
	assert.Equal(t, s.shop.ID, o.ShopID)
	assert.Equal(t, int64(4242), o.ExternalOrderID)
	assert.Equal(t, int64(1001), o.OrderNumber)
	assert.True(t, decimal.RequireFromString("30").Equal(o.Total))
	assert.Equal(t, string(order.StateProcessing), o.State)
	assert.Equal(t, "manual", o.PaymentMethod)
	require.NotNil(t, o.Warehouse)
	assert.Equal(t, "AMS-1", *o.Warehouse)
	require.NotNil(t, o.PaymentDate)
	assert.True(t, fixedNow.Equal(*o.PaymentDate))
	assert.NotEmpty(t, o.RawPayload)

	rows := s.rows(t, o.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Count)
	assert.True(t, decimal.RequireFromString("30").Equal(rows[0].Total))
	assert.True(t, decimal.RequireFromString("25").Equal(rows[0].Subtotal))
	assert.True(t, decimal.RequireFromString("5").Equal(rows[0].Tax))
	assert.Equal(t, int64(77), rows[0].ProductID)

	var pkg models.PackageModel
	require.NoError(t, s.db.First(&pkg, "id = ?", rows[0].PackageID).Error)
	assert.Equal(t, "PLAN-12M-25.00", pkg.Identifier)
	assert.True(t, decimal.RequireFromString("25").Equal(pkg.Price))
	assert.False(t, pkg.IsPhysical)

	assert.Equal(t, []string{"vip", "wholesale"}, s.tags(t, o.ID))

	require.NotNil(t, o.CustomerDetailsID)
	details := s.customer(t, *o.CustomerDetailsID)
	require.NotNil(t, details.Email)
	assert.Equal(t, "buyer@example.com", *details.Email)
	assert.Equal(t, "Ada", details.Billing.FirstName)

	var currency models.CurrencyModel
	require.NoError(t, s.db.First(&currency, "id = ?", o.CurrencyID).Error)
	assert.Equal(t, "EUR", currency.Name)
}

func TestReconciler_RedeliveryIsIdempotent(t *testing.T) {
	s := newStore(t)
	wh := &stubWarehouse{code: "AMS-1"}
	clock := fixedNow
	r := s.reconciler(ReconcilerConfig{Warehouse: wh, Clock: func() time.Time { return clock }})
	body := orderBody(t, nil)

	first, err := reconcile(t, r, s, body)
	require.NoError(t, err)

	clock = fixedNow.Add(time.Hour)
	second, err := reconcile(t, r, s, body)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.False(t, second.WarehouseAssigned)
	assert.False(t, second.PaymentDateSet)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, wh.Calls())

	orders := s.orders(t)
	require.Len(t, orders, 1)
	assert.True(t, fixedNow.Equal(*orders[0].PaymentDate))
	assert.Equal(t, *first.Order.CustomerDetailsID, *orders[0].CustomerDetailsID)

	assert.Len(t, s.rows(t, orders[0].ID), 1)
	assert.Equal(t, []string{"vip", "wholesale"}, s.tags(t, orders[0].ID))
	assert.Equal(t, int64(1), s.count(t, &models.CustomerDetailsModel{}))
	assert.Equal(t, int64(1), s.count(t, &models.PackageModel{}))
	assert.Equal(t, int64(2), s.count(t, &models.OrderTagModel{}))
	assert.Equal(t, int64(1), s.count(t, &models.CurrencyModel{}))
}

func TestReconciler_UpdateReplacesRowsAndTags(t *testing.T) {
	s := newStore(t)
	r := s.reconciler(ReconcilerConfig{})

	_, err := reconcile(t, r, s, orderBody(t, nil))
	require.NoError(t, err)

	result, err := reconcile(t, r, s, orderBody(t, func(doc map[string]any) {
		doc["total_price"] = "60.00"
		doc["note"] = "second delivery"
		doc["tags"] = "gift"
		doc["line_items"] = []any{
			map[string]any{"sku": "MUG-10", "quantity": 2, "price": "10.00", "pre_tax_price": "20.00"},
			map[string]any{"sku": "CAP-15", "quantity": 1, "price": "15.00", "pre_tax_price": "15.00"},
		}
	}))
	require.NoError(t, err)
	assert.False(t, result.Created)

	orders := s.orders(t)
	require.Len(t, orders, 1)
	assert.True(t, decimal.RequireFromString("60").Equal(orders[0].Total))
	require.NotNil(t, orders[0].Comments)
	assert.Equal(t, "second delivery", *orders[0].Comments)

	rows := s.rows(t, orders[0].ID)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, int64(2), s.count(t, &models.OrderRowModel{}))
	assert.Equal(t, []string{"gift"}, s.tags(t, orders[0].ID))
}

func TestReconciler_EmptyTagsLinkOneEmptyTag(t *testing.T) {
	s := newStore(t)
	r := s.reconciler(ReconcilerConfig{})

	result, err := reconcile(t, r, s, orderBody(t, func(doc map[string]any) {
		doc["tags"] = nil
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Tags)
	assert.Equal(t, []string{""}, s.tags(t, result.Order.ID))
}

func TestReconciler_ResolvesReferenceDataInSortedOrder(t *testing.T) {
	s := newStore(t)
	r := s.reconciler(ReconcilerConfig{})

	result, err := reconcile(t, r, s, orderBody(t, func(doc map[string]any) {
		doc["tags"] = "zeta, alpha, zeta"
		doc["line_items"] = []any{
			map[string]any{"sku": "ZZ-10", "quantity": 1, "price": "10.00", "pre_tax_price": "10.00"},
			map[string]any{"sku": "AA-5", "quantity": 1, "price": "5.00", "pre_tax_price": "5.00"},
			map[string]any{"sku": "ZZ-10", "quantity": 2, "price": "10.00", "pre_tax_price": "20.00"},
		}
	}))
	require.NoError(t, err)

	// links and rows keep payload order
	assert.Equal(t, 3, result.Tags)
	assert.Equal(t, []string{"zeta", "alpha", "zeta"}, s.tags(t, result.Order.ID))
	assert.Equal(t, int64(2), s.count(t, &models.OrderTagModel{}))

	var alpha, zeta models.OrderTagModel
	require.NoError(t, s.db.First(&alpha, "name = ?", "alpha").Error)
	require.NoError(t, s.db.First(&zeta, "name = ?", "zeta").Error)
	assert.Less(t, alpha.ID, zeta.ID, "tags are upserted by name")

	var aa, zz models.PackageModel
	require.NoError(t, s.db.First(&aa, "identifier = ?", "AA-5").Error)
	require.NoError(t, s.db.First(&zz, "identifier = ?", "ZZ-10").Error)
	assert.Less(t, aa.ID, zz.ID, "packages are upserted by identifier")
	assert.Equal(t, int64(2), s.count(t, &models.PackageModel{}))

	rows := s.rows(t, result.Order.ID)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{zz.ID, aa.ID, zz.ID}, []int64{rows[0].PackageID, rows[1].PackageID, rows[2].PackageID})
}

func TestReconciler_State(t *testing.T) {
	s := newStore(t)
	r := s.reconciler(ReconcilerConfig{})
	cancelled := func(doc map[string]any) { doc["cancelled_at"] = "2024-03-02T09:00:00Z" }

	result, err := reconcile(t, r, s, orderBody(t, cancelled))
	require.NoError(t, err)
	assert.Equal(t, order.StateCancelled, result.Order.State)

	result, err = reconcile(t, r, s, orderBody(t, nil))
	require.NoError(t, err)
	assert.False(t, result.StateChanged)
	assert.Equal(t, string(order.StateCancelled), s.orders(t)[0].State)

	result, err = reconcile(t, r, s, orderBody(t, func(doc map[string]any) {
		doc["closed_at"] = "2024-03-03T09:00:00Z"
	}))
	require.NoError(t, err)
	assert.True(t, result.StateChanged)
	assert.Equal(t, string(order.StateProcessing), s.orders(t)[0].State)
}

func TestReconciler_TestOrdersAreKeyedSeparately(t *testing.T) {
	s := newStore(t)
	r := s.reconciler(ReconcilerConfig{})

	_, err := reconcile(t, r, s, orderBody(t, nil))
	require.NoError(t, err)
	_, err = reconcile(t, r, s, orderBody(t, func(doc map[string]any) { doc["test"] = true }))
	require.NoError(t, err)

	orders := s.orders(t)
	require.Len(t, orders, 2)
	assert.NotEqual(t, orders[0].TestOrder, orders[1].TestOrder)
}

func TestReconciler_CollapsesDuplicates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	orders := persistence.NewGormOrderRepository(s.db)
	rows := persistence.NewGormOrderRowRepository(s.db)
	links := persistence.NewGormTagLinkRepository(s.db)

	fields := normalize(t, orderBody(t, nil)).Fields
	for _, id := range []int64{20, 10, 30} {
		require.NoError(t, orders.Create(ctx, order.NewOrder(id, s.shop.ID, 1, fields, order.StateProcessing)))
		require.NoError(t, rows.Create(ctx, &order.OrderRow{ID: id + 100, OrderID: id, PackageID: 1, Count: 1}))
		require.NoError(t, links.Create(ctx, &order.TagLink{ID: id + 200, OrderID: id, TagID: 1}))
	}

	metrics := &recordingMetrics{}
	r := s.reconciler(ReconcilerConfig{Metrics: metrics})
	result, err := reconcile(t, r, s, orderBody(t, nil))
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.Equal(t, 2, result.CollapsedDuplicates)
	assert.Equal(t, int64(10), result.Order.ID)
	assert.Equal(t, []int{2}, metrics.collapsed)

	remaining := s.orders(t)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(10), remaining[0].ID)
	assert.Equal(t, int64(1), s.count(t, &models.OrderRowModel{}))
	assert.Equal(t, int64(2), s.count(t, &models.OrderTagLinkModel{}))
}

func TestReconciler_UnknownSKU(t *testing.T) {
	noSKU := func(doc map[string]any) {
		doc["tags"] = "late"
		doc["line_items"] = []any{
			map[string]any{"sku": "MUG-10", "quantity": 1, "price": "10.00", "pre_tax_price": "10.00"},
			map[string]any{"sku": "", "name": "Custom engraving"},
			map[string]any{"sku": "CAP-15", "quantity": 1, "price": "15.00", "pre_tax_price": "15.00"},
		}
	}

	t.Run("rollback writes nothing", func(t *testing.T) {
		s := newStore(t)
		r := s.reconciler(ReconcilerConfig{UnknownSKUPolicy: order.UnknownSKURollback})

		result, err := reconcile(t, r, s, orderBody(t, noSKU))
		require.ErrorIs(t, err, order.ErrUnknownProduct)
		assert.Nil(t, result)
		assert.Empty(t, s.orders(t))
		assert.Zero(t, s.count(t, &models.OrderRowModel{}))
		assert.Zero(t, s.count(t, &models.CustomerDetailsModel{}))
	})

	t.Run("rollback keeps the previous reconciliation", func(t *testing.T) {
		s := newStore(t)
		r := s.reconciler(ReconcilerConfig{})

		_, err := reconcile(t, r, s, orderBody(t, nil))
		require.NoError(t, err)

		_, err = reconcile(t, r, s, orderBody(t, noSKU))
		require.ErrorIs(t, err, order.ErrUnknownProduct)

		orders := s.orders(t)
		require.Len(t, orders, 1)
		assert.True(t, decimal.RequireFromString("30").Equal(orders[0].Total))
		assert.Len(t, s.rows(t, orders[0].ID), 1)
		assert.Equal(t, []string{"vip", "wholesale"}, s.tags(t, orders[0].ID))
	})

	t.Run("commit_partial keeps rows written before the item", func(t *testing.T) {
		s := newStore(t)
		r := s.reconciler(ReconcilerConfig{UnknownSKUPolicy: order.UnknownSKUCommitPartial})

		_, err := reconcile(t, r, s, orderBody(t, nil))
		require.NoError(t, err)

		result, err := reconcile(t, r, s, orderBody(t, func(doc map[string]any) {
			noSKU(doc)
			doc["total_price"] = "99.00"
		}))
		require.ErrorIs(t, err, order.ErrUnknownProduct)
		require.NotNil(t, result)
		assert.True(t, result.UnknownProduct)
		assert.Equal(t, 1, result.Rows)

		orders := s.orders(t)
		require.Len(t, orders, 1)
		assert.True(t, decimal.RequireFromString("99").Equal(orders[0].Total))

		rows := s.rows(t, orders[0].ID)
		require.Len(t, rows, 1)
		assert.True(t, decimal.RequireFromString("10").Equal(rows[0].Subtotal))
		// tag replacement never ran, so the links from the first delivery stay
		assert.Equal(t, []string{"vip", "wholesale"}, s.tags(t, orders[0].ID))
	})

	t.Run("placeholder links the unknown package", func(t *testing.T) {
		s := newStore(t)
		r := s.reconciler(ReconcilerConfig{UnknownSKUPolicy: order.UnknownSKUPlaceholder})

		result, err := reconcile(t, r, s, orderBody(t, noSKU))
		require.NoError(t, err)
		assert.Equal(t, 3, result.Rows)

		var pkg models.PackageModel
		require.NoError(t, s.db.First(&pkg, "identifier = ?", order.UnknownPackageIdentifier).Error)
		assert.Equal(t, order.UnknownPackageName, pkg.Name)

		rows := s.rows(t, result.Order.ID)
		require.Len(t, rows, 3)
		assert.Equal(t, pkg.ID, rows[1].PackageID)
		assert.Equal(t, "Custom engraving", rows[1].Name)
		assert.Equal(t, []string{"late"}, s.tags(t, result.Order.ID))
	})
}

func TestReconciler_WarehouseFailureRollsBack(t *testing.T) {
	s := newStore(t)
	wh := &stubWarehouse{err: errors.New("connection refused")}
	r := s.reconciler(ReconcilerConfig{Warehouse: wh})

	result, err := reconcile(t, r, s, orderBody(t, nil))
	require.ErrorIs(t, err, order.ErrExternalDependency)
	assert.Nil(t, result)
	assert.Empty(t, s.orders(t))
	assert.Zero(t, s.count(t, &models.OrderRowModel{}))
	assert.Zero(t, s.count(t, &models.OrderTagLinkModel{}))
}

func TestReconciler_WarehouseTimeout(t *testing.T) {
	s := newStore(t)
	r := s.reconciler(ReconcilerConfig{
		Warehouse:        slowWarehouse{},
		WarehouseTimeout: 20 * time.Millisecond,
	})

	_, err := reconcile(t, r, s, orderBody(t, nil))
	require.ErrorIs(t, err, order.ErrExternalDependency)
	assert.Empty(t, s.orders(t))
}

func TestReconciler_EmptyRecommendationLeavesWarehouseUnset(t *testing.T) {
	s := newStore(t)
	wh := &stubWarehouse{}
	r := s.reconciler(ReconcilerConfig{Warehouse: wh})

	_, err := reconcile(t, r, s, orderBody(t, nil))
	require.NoError(t, err)
	_, err = reconcile(t, r, s, orderBody(t, nil))
	require.NoError(t, err)

	assert.Nil(t, s.orders(t)[0].Warehouse)
	assert.Equal(t, 2, wh.Calls())
}

func TestReconciler_ZeroTotalIsNotPaid(t *testing.T) {
	s := newStore(t)
	r := s.reconciler(ReconcilerConfig{})

	result, err := reconcile(t, r, s, orderBody(t, func(doc map[string]any) {
		doc["total_price"] = "0.00"
	}))
	require.NoError(t, err)
	assert.False(t, result.PaymentDateSet)
	assert.Nil(t, s.orders(t)[0].PaymentDate)
}

func TestReconciler_CustomerMergePolicy(t *testing.T) {
	second := func(doc map[string]any) {
		doc["email"] = "new@example.com"
		doc["billing_address"] = map[string]any{"first_name": "Grace", "last_name": "Hopper"}
	}

	t.Run("first write wins", func(t *testing.T) {
		s := newStore(t)
		r := s.reconciler(ReconcilerConfig{CustomerPolicy: order.CustomerFirstWriteWins})

		first, err := reconcile(t, r, s, orderBody(t, nil))
		require.NoError(t, err)
		_, err = reconcile(t, r, s, orderBody(t, second))
		require.NoError(t, err)

		details := s.customer(t, *first.Order.CustomerDetailsID)
		assert.Equal(t, "buyer@example.com", *details.Email)
		assert.Equal(t, "Ada", details.Billing.FirstName)
	})

	t.Run("latest wins", func(t *testing.T) {
		s := newStore(t)
		r := s.reconciler(ReconcilerConfig{CustomerPolicy: order.CustomerLatestWins})

		first, err := reconcile(t, r, s, orderBody(t, nil))
		require.NoError(t, err)
		_, err = reconcile(t, r, s, orderBody(t, second))
		require.NoError(t, err)

		details := s.customer(t, *first.Order.CustomerDetailsID)
		assert.Equal(t, "new@example.com", *details.Email)
		assert.Equal(t, "Grace", details.Billing.FirstName)
		assert.Equal(t, int64(1), s.count(t, &models.CustomerDetailsModel{}))
	})
}

func TestReconciler_ConcurrentFirstDeliveries(t *testing.T) {
	s := newStore(t)
	wh := &stubWarehouse{code: "AMS-1"}
	r := s.reconciler(ReconcilerConfig{Warehouse: wh})
	body := orderBody(t, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := NewNormalizer().Normalize(body)
			if err != nil {
				errs <- err
				return
			}
			_, err = r.Reconcile(context.Background(), s.shop, payload, payload.State)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	orders := s.orders(t)
	require.Len(t, orders, 1)
	assert.Len(t, s.rows(t, orders[0].ID), 1)
	assert.Equal(t, 1, wh.Calls())
	assert.Equal(t, int64(1), s.count(t, &models.PackageModel{}))
}

type slowWarehouse struct{}

func (slowWarehouse) Recommend(ctx context.Context, _ *order.Order) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Second):
		return "LATE", nil
	}
}

type recordingMetrics struct {
	mu        sync.Mutex
	webhooks  []string
	reconcile []string
	collapsed []int
}

func (m *recordingMetrics) WebhookHandled(_ context.Context, topic, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, topic+":"+outcome)
}

func (m *recordingMetrics) ReconcileFinished(_ context.Context, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcile = append(m.reconcile, outcome)
}

func (m *recordingMetrics) DuplicatesCollapsed(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collapsed = append(m.collapsed, n)
}
