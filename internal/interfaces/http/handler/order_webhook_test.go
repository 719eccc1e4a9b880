package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/order"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) Ingest(ctx context.Context, req ordersync.WebhookRequest) (*ordersync.IngestResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ordersync.IngestResult)
	return res, args.Error(1)
}

func newWebhookEngine(ingester OrderIngester, maxBody int64) *gin.Engine {
	h := NewOrderWebhookHandler(ingester, maxBody)
	h.now = func() time.Time { return time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC) }
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/"))
	return engine
}

func webhookRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(HeaderTopic, "orders/create")
	req.Header.Set(HeaderSignature, "c2lnbmF0dXJl")
	req.Header.Set(HeaderShopDomain, "acme.myshopify.com")
	req.Header.Set(HeaderWebhookID, "d-1")
	return req
}

func TestHandleOrderWebhook_Success(t *testing.T) {
	ingester := new(mockIngester)
	ingester.On("Ingest", mock.Anything, ordersync.WebhookRequest{
		Topic:      "orders/create",
		Signature:  "c2lnbmF0dXJl",
		ShopDomain: "acme.myshopify.com",
		DeliveryID: "d-1",
		Body:       []byte(`{"id":1}`),
		ReceivedAt: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}).Return(&ordersync.IngestResult{}, nil).Once()

	engine := newWebhookEngine(ingester, 1024)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest("/webhooks/shopify/orders", `{"id":1}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	ingester.AssertExpectations(t)
}

func TestHandleOrderWebhook_Alias(t *testing.T) {
	ingester := new(mockIngester)
	ingester.On("Ingest", mock.Anything, mock.Anything).Return(&ordersync.IngestResult{}, nil).Once()

	w := httptest.NewRecorder()
	newWebhookEngine(ingester, 1024).ServeHTTP(w, webhookRequest("/webhooks/shopify", `{"id":1}`))

	assert.Equal(t, http.StatusOK, w.Code)
	ingester.AssertExpectations(t)
}

func TestHandleOrderWebhook_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"malformed request", fmt.Errorf("%w: missing topic header", order.ErrMalformedRequest), http.StatusBadRequest, `{"error":"Malformed request"}`},
		{"malformed payload", fmt.Errorf("%w: missing or invalid fields: id", order.ErrMalformedPayload), http.StatusBadRequest, `{"error":"Malformed request"}`},
		{"bad signature", fmt.Errorf("%w: signature mismatch", order.ErrUnauthenticated), http.StatusForbidden, `{"error":"Invalid webhook signature"}`},
		{"unknown package", fmt.Errorf("%w: line item without SKU", order.ErrUnknownProduct), http.StatusOK, `{"error":"Unknown package"}`},
		{"warehouse down", fmt.Errorf("%w: warehouse: timeout", order.ErrExternalDependency), http.StatusServiceUnavailable, `{"error":"Warehouse recommendation unavailable"}`},
		{"database", errors.New("connection reset"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester := new(mockIngester)
			ingester.On("Ingest", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w := httptest.NewRecorder()
			newWebhookEngine(ingester, 1024).ServeHTTP(w, webhookRequest("/webhooks/shopify/orders", `{"id":1}`))

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestHandleOrderWebhook_BodyTooLarge(t *testing.T) {
	ingester := new(mockIngester)

	req := webhookRequest("/webhooks/shopify/orders", `{"id":1234567890}`)
	req.ContentLength = -1
	w := httptest.NewRecorder()
	newWebhookEngine(ingester, 8).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestHandleOrderWebhook_BodyAtLimit(t *testing.T) {
	ingester := new(mockIngester)
	ingester.On("Ingest", mock.Anything, mock.Anything).Return(&ordersync.IngestResult{}, nil).Once()

	w := httptest.NewRecorder()
	newWebhookEngine(ingester, 8).ServeHTTP(w, webhookRequest("/webhooks/shopify/orders", `{"id":1}`))

	require.Equal(t, http.StatusOK, w.Code)
	ingester.AssertExpectations(t)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestHandleOrderWebhook_UnreadableBody(t *testing.T) {
	ingester := new(mockIngester)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/orders", failingReader{})
	w := httptest.NewRecorder()
	newWebhookEngine(ingester, 1024).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Malformed request"}`, w.Body.String())
	ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}
