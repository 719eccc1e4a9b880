package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names recorded by the ingestion pipeline
const (
	MetricWebhooksHandled     = "ordersync.webhooks.handled"
	MetricReconcileDuration   = "ordersync.reconcile.duration"
	MetricDuplicatesCollapsed = "ordersync.orders.duplicates_collapsed"
)

// IngestionMetrics records webhook and reconciliation measurements
type IngestionMetrics struct {
	webhooks   metric.Int64Counter
	reconcile  metric.Float64Histogram
	duplicates metric.Int64Counter
}

// NewIngestionMetrics registers the ingestion instruments on meter
func NewIngestionMetrics(meter metric.Meter) (*IngestionMetrics, error) {
	webhooks, err := meter.Int64Counter(MetricWebhooksHandled,
		metric.WithDescription("Order webhooks handled, by topic and outcome"),
		metric.WithUnit("{webhook}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricWebhooksHandled, err)
	}

	reconcile, err := meter.Float64Histogram(MetricReconcileDuration,
		metric.WithDescription("Time spent reconciling one order"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", MetricReconcileDuration, err)
	}

	duplicates, err := meter.Int64Counter(MetricDuplicatesCollapsed,
		metric.WithDescription("Duplicate order records removed during reconciliation"),
		metric.WithUnit("{order}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricDuplicatesCollapsed, err)
	}

	return &IngestionMetrics{webhooks: webhooks, reconcile: reconcile, duplicates: duplicates}, nil
}

// WebhookHandled counts one handled webhook
func (m *IngestionMetrics) WebhookHandled(ctx context.Context, topic, outcome string) {
	m.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
}

// ReconcileFinished records the duration of one reconciliation
func (m *IngestionMetrics) ReconcileFinished(ctx context.Context, outcome string, elapsed time.Duration) {
	m.reconcile.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// DuplicatesCollapsed counts removed duplicate orders
func (m *IngestionMetrics) DuplicatesCollapsed(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.duplicates.Add(ctx, int64(n))
}
