package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Webhook headers set by the shop platform
const (
	HeaderTopic      = "X-Shopify-Topic"
	HeaderSignature  = "X-Shopify-Hmac-Sha256"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

// OrderIngester handles one order webhook delivery
type OrderIngester interface {
	Ingest(ctx context.Context, req ordersync.WebhookRequest) (*ordersync.IngestResult, error)
}

// OrderWebhookHandler receives order webhooks from shops
type OrderWebhookHandler struct {
	ingester     OrderIngester
	maxBodyBytes int64
	now          func() time.Time
}

// NewOrderWebhookHandler creates a handler reading at most maxBodyBytes of
// each request body
func NewOrderWebhookHandler(ingester OrderIngester, maxBodyBytes int64) *OrderWebhookHandler {
	return &OrderWebhookHandler{
		ingester:     ingester,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

// RegisterRoutes mounts the webhook endpoint and its short alias
func (h *OrderWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/shopify/orders", h.HandleOrderWebhook)
	rg.POST("/webhooks/shopify", h.HandleOrderWebhook)
}

// HandleOrderWebhook authenticates and reconciles one order delivery.
//
// Replies 200 with an empty body on success, 200 with an error descriptor
// for an unknown package so the sender stops retrying, 400 for malformed
// requests, 403 for bad signatures, 413 for oversized bodies, 503 when the
// warehouse recommender is unavailable and 500 otherwise.
func (h *OrderWebhookHandler) HandleOrderWebhook(c *gin.Context) {
	log := logger.GetGinLogger(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		log.Info("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: MsgMalformedRequest})
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: MsgPayloadTooLarge})
		return
	}

	_, err = h.ingester.Ingest(c.Request.Context(), ordersync.WebhookRequest{
		Topic:      c.GetHeader(HeaderTopic),
		Signature:  c.GetHeader(HeaderSignature),
		ShopDomain: c.GetHeader(HeaderShopDomain),
		DeliveryID: c.GetHeader(HeaderWebhookID),
		Body:       body,
		ReceivedAt: h.now(),
	})
	if err != nil {
		status, msg := errorReply(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	c.Status(http.StatusOK)
}

func errorReply(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrMalformedRequest), errors.Is(err, order.ErrMalformedPayload):
		return http.StatusBadRequest, MsgMalformedRequest
	case errors.Is(err, order.ErrUnauthenticated):
		return http.StatusForbidden, MsgInvalidSignature
	case errors.Is(err, order.ErrUnknownProduct):
		return http.StatusOK, MsgUnknownPackage
	case errors.Is(err, order.ErrExternalDependency):
		return http.StatusServiceUnavailable, MsgWarehouseUnavailable
	default:
		return http.StatusInternalServerError, MsgInternalError
	}
}
