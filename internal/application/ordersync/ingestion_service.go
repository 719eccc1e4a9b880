package ordersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// WebhookRequest is one webhook delivery as received over HTTP
type WebhookRequest struct {
	Topic      string
	Signature  string
	ShopDomain string
	DeliveryID string
	Body       []byte
	ReceivedAt time.Time
}

// IngestResult is the outcome of a successfully handled delivery
type IngestResult struct {
	Shop *order.Shop
	// Replayed is true when the delivery ID was already reconciled and the
	// body was not processed again
	Replayed bool
	Result   *ReconcileResult
}

// IngestionServiceConfig contains configuration for IngestionService
type IngestionServiceConfig struct {
	Shops      order.ShopRepository
	Normalizer *Normalizer
	Reconciler *Reconciler
	// Ledger is optional. Without it every delivery is reconciled.
	Ledger      shared.IdempotencyStore
	DeliveryTTL time.Duration
	// Archive is optional
	Archive order.PayloadArchive
	// SkipSignatureValidation only resolves the shop from the domain header.
	// Never enabled in production.
	SkipSignatureValidation bool
	Metrics                 Metrics
	Logger                  *zap.Logger
}

// IngestionService authenticates, normalizes and reconciles order webhooks
type IngestionService struct {
	shops         order.ShopRepository
	verifier      *SignatureVerifier
	normalizer    *Normalizer
	reconciler    *Reconciler
	ledger        shared.IdempotencyStore
	deliveryTTL   time.Duration
	archive       order.PayloadArchive
	skipSignature bool
	metrics       Metrics
	logger        *zap.Logger
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(cfg IngestionServiceConfig) *IngestionService {
	s := &IngestionService{
		shops:         cfg.Shops,
		verifier:      NewSignatureVerifier(cfg.Shops),
		normalizer:    cfg.Normalizer,
		reconciler:    cfg.Reconciler,
		ledger:        cfg.Ledger,
		deliveryTTL:   cfg.DeliveryTTL,
		archive:       cfg.Archive,
		skipSignature: cfg.SkipSignatureValidation,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
	if s.normalizer == nil {
		s.normalizer = NewNormalizer()
	}
	if s.metrics == nil {
		s.metrics = NopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.deliveryTTL <= 0 {
		s.deliveryTTL = 48 * time.Hour
	}
	return s
}

// Ingest handles one delivery. Errors wrap the order package sentinels:
// ErrMalformedRequest, ErrMalformedPayload, ErrUnauthenticated,
// ErrUnknownProduct and ErrExternalDependency. Anything else is internal.
func (s *IngestionService) Ingest(ctx context.Context, req WebhookRequest) (*IngestResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_webhook", "ingest",
		telemetry.SpanAttrShopDomain, req.ShopDomain,
		telemetry.SpanAttrTopic, req.Topic,
		telemetry.SpanAttrDeliveryID, req.DeliveryID)
	defer span.End()

	res, err := s.ingest(ctx, req)
	telemetry.RecordError(span, err)

	outcome := OutcomeOf(err)
	if err == nil && res.Replayed {
		outcome = OutcomeReplayed
	}
	s.metrics.WebhookHandled(ctx, req.Topic, outcome)
	return res, err
}

func (s *IngestionService) ingest(ctx context.Context, req WebhookRequest) (*IngestResult, error) {
	ctx, log := logger.WithShopDomain(ctx, logger.LOr(ctx, s.logger), req.ShopDomain)
	if req.DeliveryID != "" {
		ctx, log = logger.WithDeliveryID(ctx, log, req.DeliveryID)
	}
	log = log.With(zap.String("topic", req.Topic))

	if err := s.checkRequest(req); err != nil {
		log.Info("Rejected malformed webhook", zap.Error(err))
		return nil, err
	}

	shop, err := s.authenticate(ctx, req)
	if err != nil {
		if errors.Is(err, order.ErrUnauthenticated) {
			log.Warn("Rejected webhook with invalid signature", zap.Error(err))
		}
		return nil, err
	}

	if replayed, err := s.alreadyProcessed(ctx, req.DeliveryID); err != nil {
		log.Warn("Delivery ledger lookup failed, reconciling anyway", zap.Error(err))
	} else if replayed {
		log.Info("Delivery already reconciled, skipping")
		return &IngestResult{Shop: shop, Replayed: true}, nil
	}

	payload, err := s.normalizer.Normalize(req.Body)
	if err != nil {
		log.Info("Rejected webhook payload", zap.Error(err))
		return nil, err
	}

	result, err := s.reconciler.Reconcile(ctx, shop, payload, payload.State)
	if err != nil {
		log.Warn("Reconciliation failed",
			zap.Int64("external_order_id", payload.Fields.ExternalOrderID),
			zap.Error(err))
		return &IngestResult{Shop: shop, Result: result}, err
	}

	log.Info("Order webhook reconciled",
		zap.Int64("external_order_id", payload.Fields.ExternalOrderID),
		zap.Int64("order_id", result.Order.ID),
		zap.Bool("created", result.Created),
		zap.Int("collapsed_duplicates", result.CollapsedDuplicates))

	s.markProcessed(ctx, log, req.DeliveryID)
	s.archivePayload(ctx, log, shop, payload, req)

	return &IngestResult{Shop: shop, Result: result}, nil
}

func (s *IngestionService) checkRequest(req WebhookRequest) error {
	if req.ShopDomain == "" {
		return fmt.Errorf("%w: missing shop domain header", order.ErrMalformedRequest)
	}
	if !s.skipSignature {
		if req.Topic == "" {
			return fmt.Errorf("%w: missing topic header", order.ErrMalformedRequest)
		}
		if req.Signature == "" {
			return fmt.Errorf("%w: missing signature header", order.ErrMalformedRequest)
		}
	}
	if !json.Valid(req.Body) {
		return fmt.Errorf("%w: body is not valid JSON", order.ErrMalformedRequest)
	}
	return nil
}

func (s *IngestionService) authenticate(ctx context.Context, req WebhookRequest) (*order.Shop, error) {
	if s.skipSignature {
		return s.verifier.resolveShop(ctx, req.ShopDomain)
	}
	return s.verifier.Verify(ctx, req.Body, req.ShopDomain, req.Signature)
}

func (s *IngestionService) alreadyProcessed(ctx context.Context, deliveryID string) (bool, error) {
	if s.ledger == nil || deliveryID == "" {
		return false, nil
	}
	return s.ledger.IsProcessed(ctx, deliveryID)
}

func (s *IngestionService) markProcessed(ctx context.Context, log *zap.Logger, deliveryID string) {
	if s.ledger == nil || deliveryID == "" {
		return
	}
	if _, err := s.ledger.MarkProcessed(ctx, deliveryID, s.deliveryTTL); err != nil {
		log.Warn("Failed to record delivery", zap.Error(err))
	}
}

func (s *IngestionService) archivePayload(ctx context.Context, log *zap.Logger, shop *order.Shop, payload *order.NormalizedOrder, req WebhookRequest) {
	if s.archive == nil {
		return
	}
	received := req.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	err := s.archive.Archive(ctx, order.ArchivedPayload{
		ShopDomain:      shop.Domain,
		ExternalOrderID: payload.Fields.ExternalOrderID,
		DeliveryID:      req.DeliveryID,
		Topic:           req.Topic,
		ReceivedAt:      received,
		Body:            req.Body,
	})
	if err != nil {
		log.Warn("Failed to archive webhook payload", zap.Error(err))
	}
}
