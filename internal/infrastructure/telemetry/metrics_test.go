package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestIngestionMetrics(t *testing.T) {
	reader, provider := newTestMeter(t)
	m, err := telemetry.NewIngestionMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.WebhookHandled(ctx, "orders/create", "success")
	m.WebhookHandled(ctx, "orders/create", "success")
	m.WebhookHandled(ctx, "orders/updated", "malformed")
	m.ReconcileFinished(ctx, "success", 30*time.Millisecond)
	m.DuplicatesCollapsed(ctx, 2)
	m.DuplicatesCollapsed(ctx, 0)

	metrics := collect(t, reader)

	webhooks := metrics[telemetry.MetricWebhooksHandled].Data.(metricdata.Sum[int64])
	require.Len(t, webhooks.DataPoints, 2)
	counts := map[string]int64{}
	for _, dp := range webhooks.DataPoints {
		topic, _ := dp.Attributes.Value("topic")
		outcome, _ := dp.Attributes.Value("outcome")
		counts[topic.AsString()+":"+outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"orders/create:success": 2, "orders/updated:malformed": 1}, counts)

	reconcile := metrics[telemetry.MetricReconcileDuration].Data.(metricdata.Histogram[float64])
	require.Len(t, reconcile.DataPoints, 1)
	assert.Equal(t, uint64(1), reconcile.DataPoints[0].Count)
	assert.InDelta(t, 0.03, reconcile.DataPoints[0].Sum, 0.0001)

	duplicates := metrics[telemetry.MetricDuplicatesCollapsed].Data.(metricdata.Sum[int64])
	require.Len(t, duplicates.DataPoints, 1)
	assert.Equal(t, int64(2), duplicates.DataPoints[0].Value)
}

type widget struct {
	ID   int64 `gorm:"primaryKey;autoIncrement:false"`
	Name string
}

func TestInstrumentDB(t *testing.T) {
	reader, provider := newTestMeter(t)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, telemetry.InstrumentDB(db, telemetry.DBConfig{
		TraceEnabled: true,
		DBSystem:     "sqlite",
	}, provider.Meter("test"), zap.NewNop()))

	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{ID: 1, Name: "a"}).Error)
	var got widget
	require.NoError(t, db.First(&got, 1).Error)

	metrics := collect(t, reader)

	durations := metrics[telemetry.MetricDBQueryDuration].Data.(metricdata.Histogram[float64])
	ops := map[string]bool{}
	for _, dp := range durations.DataPoints {
		op, _ := dp.Attributes.Value("db.operation")
		ops[op.AsString()] = true
	}
	assert.True(t, ops["create"])
	assert.True(t, ops["query"])

	open := metrics[telemetry.MetricDBConnectionsOpen].Data.(metricdata.Gauge[int64])
	require.Len(t, open.DataPoints, 1)
	assert.Equal(t, int64(1), open.DataPoints[0].Value)
}
