package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Database metric names
const (
	MetricDBQueryDuration   = "db.client.query.duration"
	MetricDBConnectionsOpen = "db.client.connections.open"
	MetricDBConnectionsIdle = "db.client.connections.idle"
)

const startedAtKey = "ordersync:query_started_at"

// DBConfig configures database instrumentation
type DBConfig struct {
	TraceEnabled    bool
	DBSystem        string
	SlowQueryThresh time.Duration
}

// InstrumentDB registers otelgorm tracing, slow query logging and, when
// meter is not nil, query duration and pool metrics on db
func InstrumentDB(db *gorm.DB, cfg DBConfig, meter metric.Meter, logger *zap.Logger) error {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	if cfg.TraceEnabled {
		plugin := otelgorm.NewPlugin(
			otelgorm.WithDBName(cfg.DBSystem),
			otelgorm.WithoutQueryVariables(),
		)
		if err := db.Use(plugin); err != nil {
			return fmt.Errorf("failed to register otelgorm plugin: %w", err)
		}
	}

	var histogram metric.Float64Histogram
	if meter != nil {
		var err error
		histogram, err = meter.Float64Histogram(MetricDBQueryDuration,
			metric.WithDescription("Duration of database operations"),
			metric.WithUnit("s"))
		if err != nil {
			return fmt.Errorf("failed to create %s histogram: %w", MetricDBQueryDuration, err)
		}
		if err := registerPoolGauges(db, meter); err != nil {
			return err
		}
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(startedAtKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			observeQuery(tx, operation, cfg, histogram, logger)
		}
	}

	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"create", cb.Create().Before("gorm:create").Register("ordersync:before_create", before)},
		{"query", cb.Query().Before("gorm:query").Register("ordersync:before_query", before)},
		{"update", cb.Update().Before("gorm:update").Register("ordersync:before_update", before)},
		{"delete", cb.Delete().Before("gorm:delete").Register("ordersync:before_delete", before)},
		{"row", cb.Row().Before("gorm:row").Register("ordersync:before_row", before)},
		{"raw", cb.Raw().Before("gorm:raw").Register("ordersync:before_raw", before)},
		{"create", cb.Create().After("gorm:create").Register("ordersync:after_create", after("create"))},
		{"query", cb.Query().After("gorm:query").Register("ordersync:after_query", after("query"))},
		{"update", cb.Update().After("gorm:update").Register("ordersync:after_update", after("update"))},
		{"delete", cb.Delete().After("gorm:delete").Register("ordersync:after_delete", after("delete"))},
		{"row", cb.Row().After("gorm:row").Register("ordersync:after_row", after("row"))},
		{"raw", cb.Raw().After("gorm:raw").Register("ordersync:after_raw", after("raw"))},
	}
	for _, r := range registrations {
		if r.err != nil {
			return fmt.Errorf("failed to register %s callback: %w", r.name, r.err)
		}
	}
	return nil
}

func observeQuery(tx *gorm.DB, operation string, cfg DBConfig, histogram metric.Float64Histogram, logger *zap.Logger) {
	v, ok := tx.InstanceGet(startedAtKey)
	if !ok {
		return
	}
	startedAt, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(startedAt)

	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	failed := tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound)

	if histogram != nil {
		histogram.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", tx.Statement.Table),
			attribute.Bool("error", failed),
		))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
		if failed {
			span.SetStatus(codes.Error, tx.Error.Error())
		}
	}

	if elapsed > cfg.SlowQueryThresh {
		if span.IsRecording() {
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
			))
		}
		logger.Warn("Slow database query",
			zap.String("operation", operation),
			zap.String("table", tx.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", cfg.SlowQueryThresh))
	}
}

func registerPoolGauges(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	open, err := meter.Int64ObservableGauge(MetricDBConnectionsOpen,
		metric.WithDescription("Open database connections"))
	if err != nil {
		return fmt.Errorf("failed to create %s gauge: %w", MetricDBConnectionsOpen, err)
	}
	idle, err := meter.Int64ObservableGauge(MetricDBConnectionsIdle,
		metric.WithDescription("Idle database connections"))
	if err != nil {
		return fmt.Errorf("failed to create %s gauge: %w", MetricDBConnectionsIdle, err)
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(open, int64(stats.OpenConnections))
		o.ObserveInt64(idle, int64(stats.Idle))
		return nil
	}, open, idle)
	if err != nil {
		return fmt.Errorf("failed to register pool callback: %w", err)
	}
	return nil
}
