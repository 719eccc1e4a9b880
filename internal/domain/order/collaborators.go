package order

import (
	"context"
	"time"
)

// WarehouseRecommender picks the warehouse that should fulfil an order.
// It is called while the order is locked and must return quickly.
type WarehouseRecommender interface {
	Recommend(ctx context.Context, order *Order) (string, error)
}

// ArchivedPayload is a raw webhook body kept for audit and replay
type ArchivedPayload struct {
	ShopDomain      string
	ExternalOrderID int64
	DeliveryID      string
	Topic           string
	ReceivedAt      time.Time
	Body            []byte
}

// PayloadArchive stores raw webhook bodies after a successful reconciliation
type PayloadArchive interface {
	Archive(ctx context.Context, payload ArchivedPayload) error
}
