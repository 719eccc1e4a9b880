package ordersync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/cache"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeArchive struct {
	mu       sync.Mutex
	err      error
	archived []order.ArchivedPayload
}

func (a *fakeArchive) Archive(_ context.Context, p order.ArchivedPayload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.archived = append(a.archived, p)
	return nil
}

type failingLedger struct{}

func (failingLedger) MarkProcessed(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingLedger) IsProcessed(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func (failingLedger) Close() error { return nil }

type ingestionHarness struct {
	store   *store
	service *IngestionService
	ledger  *cache.MemoryDeliveryLedger
	archive *fakeArchive
	metrics *recordingMetrics
	logs    *observer.ObservedLogs
}

func newIngestionHarness(t *testing.T, mutate func(cfg *IngestionServiceConfig)) *ingestionHarness {
	t.Helper()
	s := newStore(t)
	ledger := cache.NewMemoryDeliveryLedger(time.Minute)
	t.Cleanup(func() { _ = ledger.Close() })

	core, logs := observer.New(zap.DebugLevel)
	h := &ingestionHarness{
		store:   s,
		ledger:  ledger,
		archive: &fakeArchive{},
		metrics: &recordingMetrics{},
		logs:    logs,
	}
	cfg := IngestionServiceConfig{
		Shops:       persistence.NewGormShopRepository(s.db),
		Reconciler:  s.reconciler(ReconcilerConfig{Metrics: h.metrics}),
		Ledger:      ledger,
		DeliveryTTL: time.Hour,
		Archive:     h.archive,
		Metrics:     h.metrics,
		Logger:      zap.New(core),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.service = NewIngestionService(cfg)
	return h
}

func signedRequest(t *testing.T, body []byte) WebhookRequest {
	t.Helper()
	return WebhookRequest{
		Topic:      "orders/updated",
		Signature:  ComputeSignature("topsecret", body),
		ShopDomain: testShopDomain,
		DeliveryID: "b54557e4-bdd9-4b37-8a5f-bf7d70bcd043",
		Body:       body,
		ReceivedAt: fixedNow,
	}
}

func TestIngestionService_Ingest(t *testing.T) {
	h := newIngestionHarness(t, nil)
	req := signedRequest(t, orderBody(t, nil))

	res, err := h.service.Ingest(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.Equal(t, h.store.shop.ID, res.Shop.ID)
	require.NotNil(t, res.Result)
	assert.True(t, res.Result.Created)
	assert.Len(t, h.store.orders(t), 1)

	processed, err := h.ledger.IsProcessed(context.Background(), req.DeliveryID)
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, h.archive.archived, 1)
	archived := h.archive.archived[0]
	assert.Equal(t, testShopDomain, archived.ShopDomain)
	assert.Equal(t, int64(4242), archived.ExternalOrderID)
	assert.Equal(t, req.DeliveryID, archived.DeliveryID)
	assert.Equal(t, req.Body, archived.Body)
	assert.True(t, fixedNow.Equal(archived.ReceivedAt))

	assert.Equal(t, []string{"orders/updated:success"}, h.metrics.webhooks)
	assert.Equal(t, []string{OutcomeSuccess}, h.metrics.reconcile)

	entries := h.logs.FilterMessage("Order webhook reconciled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, testShopDomain, fields["shop_domain"])
	assert.Equal(t, req.DeliveryID, fields["delivery_id"])
}

func TestIngestionService_ReplayedDeliveryIsSkipped(t *testing.T) {
	h := newIngestionHarness(t, nil)
	req := signedRequest(t, orderBody(t, nil))

	_, err := h.service.Ingest(context.Background(), req)
	require.NoError(t, err)

	// same delivery ID with a body that would fail reconciliation
	replay := signedRequest(t, orderBody(t, func(doc map[string]any) {
		doc["line_items"] = []any{map[string]any{"sku": ""}}
	}))
	res, err := h.service.Ingest(context.Background(), replay)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Nil(t, res.Result)
	assert.Len(t, h.archive.archived, 1)
	assert.Equal(t, []string{"orders/updated:success", "orders/updated:replayed"}, h.metrics.webhooks)
}

func TestIngestionService_WithoutDeliveryIDAlwaysReconciles(t *testing.T) {
	h := newIngestionHarness(t, nil)
	req := signedRequest(t, orderBody(t, nil))
	req.DeliveryID = ""

	for i := 0; i < 2; i++ {
		res, err := h.service.Ingest(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, res.Replayed)
	}
	assert.Zero(t, h.ledger.Len())
	assert.Len(t, h.store.orders(t), 1)
}

func TestIngestionService_LedgerFailureDoesNotBlockIngestion(t *testing.T) {
	h := newIngestionHarness(t, func(cfg *IngestionServiceConfig) {
		cfg.Ledger = failingLedger{}
	})

	_, err := h.service.Ingest(context.Background(), signedRequest(t, orderBody(t, nil)))
	require.NoError(t, err)
	assert.Len(t, h.store.orders(t), 1)
	assert.Equal(t, 1, h.logs.FilterMessage("Delivery ledger lookup failed, reconciling anyway").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("Failed to record delivery").Len())
}

func TestIngestionService_ArchiveFailureIsLoggedOnly(t *testing.T) {
	h := newIngestionHarness(t, nil)
	h.archive.err = errors.New("bucket missing")

	_, err := h.service.Ingest(context.Background(), signedRequest(t, orderBody(t, nil)))
	require.NoError(t, err)
	assert.Len(t, h.store.orders(t), 1)
	assert.Equal(t, 1, h.logs.FilterMessage("Failed to archive webhook payload").Len())
}

func TestIngestionService_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(req *WebhookRequest)
		wantErr error
		outcome string
	}{
		{
			name:    "missing shop domain",
			edit:    func(req *WebhookRequest) { req.ShopDomain = "" },
			wantErr: order.ErrMalformedRequest,
			outcome: OutcomeMalformed,
		},
		{
			name:    "missing topic",
			edit:    func(req *WebhookRequest) { req.Topic = "" },
			wantErr: order.ErrMalformedRequest,
			outcome: OutcomeMalformed,
		},
		{
			name:    "missing signature",
			edit:    func(req *WebhookRequest) { req.Signature = "" },
			wantErr: order.ErrMalformedRequest,
			outcome: OutcomeMalformed,
		},
		{
			name: "body is not JSON",
			edit: func(req *WebhookRequest) {
				req.Body = []byte("order=1")
				req.Signature = ComputeSignature("topsecret", req.Body)
			},
			wantErr: order.ErrMalformedRequest,
			outcome: OutcomeMalformed,
		},
		{
			name:    "wrong signature",
			edit:    func(req *WebhookRequest) { req.Signature = ComputeSignature("guess", req.Body) },
			wantErr: order.ErrUnauthenticated,
			outcome: OutcomeUnauthenticated,
		},
		{
			name:    "unknown shop",
			edit:    func(req *WebhookRequest) { req.ShopDomain = "other.myshopify.com" },
			wantErr: order.ErrUnauthenticated,
			outcome: OutcomeUnauthenticated,
		},
		{
			name: "payload missing required field",
			edit: func(req *WebhookRequest) {
				req.Body = []byte(`{"id":1}`)
				req.Signature = ComputeSignature("topsecret", req.Body)
			},
			wantErr: order.ErrMalformedPayload,
			outcome: OutcomeMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newIngestionHarness(t, nil)
			req := signedRequest(t, orderBody(t, nil))
			tt.edit(&req)

			_, err := h.service.Ingest(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
			require.Len(t, h.metrics.webhooks, 1)
			assert.Contains(t, h.metrics.webhooks[0], ":"+tt.outcome)
			assert.Empty(t, h.store.orders(t))
			assert.Zero(t, h.ledger.Len())
			assert.Empty(t, h.archive.archived)
		})
	}
}

func TestIngestionService_FailedReconciliationIsNotRecorded(t *testing.T) {
	h := newIngestionHarness(t, nil)
	req := signedRequest(t, orderBody(t, func(doc map[string]any) {
		doc["line_items"] = []any{map[string]any{"sku": ""}}
	}))

	_, err := h.service.Ingest(context.Background(), req)
	require.ErrorIs(t, err, order.ErrUnknownProduct)
	assert.Zero(t, h.ledger.Len())
	assert.Empty(t, h.archive.archived)
	assert.Equal(t, []string{"orders/updated:" + OutcomeUnknownProduct}, h.metrics.webhooks)
}

func TestIngestionService_SkipSignatureValidation(t *testing.T) {
	h := newIngestionHarness(t, func(cfg *IngestionServiceConfig) {
		cfg.SkipSignatureValidation = true
	})

	t.Run("unsigned request is accepted", func(t *testing.T) {
		req := signedRequest(t, orderBody(t, nil))
		req.Signature = ""
		req.Topic = ""

		res, err := h.service.Ingest(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, h.store.shop.ID, res.Shop.ID)
	})

	t.Run("domain header is still required", func(t *testing.T) {
		req := signedRequest(t, orderBody(t, nil))
		req.ShopDomain = ""

		_, err := h.service.Ingest(context.Background(), req)
		assert.ErrorIs(t, err, order.ErrMalformedRequest)
	})

	t.Run("unknown shop is still rejected", func(t *testing.T) {
		req := signedRequest(t, orderBody(t, nil))
		req.ShopDomain = "other.myshopify.com"

		_, err := h.service.Ingest(context.Background(), req)
		assert.ErrorIs(t, err, order.ErrUnauthenticated)
	})
}
