// Package warehouse provides the warehouse recommenders consulted when an
// order has no fulfilling warehouse yet.
package warehouse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StaticRecommender assigns the same warehouse to every order.
// An empty code leaves orders unassigned.
type StaticRecommender struct {
	code string
}

// NewStaticRecommender creates a recommender that always returns code
func NewStaticRecommender(code string) *StaticRecommender {
	return &StaticRecommender{code: code}
}

// Recommend returns the configured code
func (r *StaticRecommender) Recommend(ctx context.Context, _ *order.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.code, nil
}

// NewRecommender builds the recommender selected by cfg.Mode
func NewRecommender(cfg config.WarehouseConfig) (order.WarehouseRecommender, error) {
	switch cfg.Mode {
	case config.WarehouseModeStatic, "":
		return NewStaticRecommender(cfg.DefaultCode), nil
	case config.WarehouseModeHTTP:
		client := &http.Client{
			Timeout:   cfg.Timeout + time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		return NewHTTPRecommender(cfg.Endpoint, client)
	default:
		return nil, fmt.Errorf("unknown warehouse mode %q", cfg.Mode)
	}
}

var _ order.WarehouseRecommender = (*StaticRecommender)(nil)
