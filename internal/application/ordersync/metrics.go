package ordersync

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
)

// Outcome labels recorded for webhooks and reconciliations
const (
	OutcomeSuccess           = "success"
	OutcomeReplayed          = "replayed"
	OutcomeMalformed         = "malformed"
	OutcomeUnauthenticated   = "unauthenticated"
	OutcomeUnknownProduct    = "unknown_product"
	OutcomeDependencyFailure = "dependency_failure"
	OutcomeError             = "error"
)

// OutcomeOf maps an ingestion error to its outcome label
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, order.ErrMalformedRequest), errors.Is(err, order.ErrMalformedPayload):
		return OutcomeMalformed
	case errors.Is(err, order.ErrUnauthenticated):
		return OutcomeUnauthenticated
	case errors.Is(err, order.ErrUnknownProduct):
		return OutcomeUnknownProduct
	case errors.Is(err, order.ErrExternalDependency):
		return OutcomeDependencyFailure
	default:
		return OutcomeError
	}
}

// Metrics receives ingestion measurements
type Metrics interface {
	WebhookHandled(ctx context.Context, topic, outcome string)
	ReconcileFinished(ctx context.Context, outcome string, elapsed time.Duration)
	DuplicatesCollapsed(ctx context.Context, n int)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) WebhookHandled(context.Context, string, string)           {}
func (NopMetrics) ReconcileFinished(context.Context, string, time.Duration) {}
func (NopMetrics) DuplicatesCollapsed(context.Context, int)                 {}
