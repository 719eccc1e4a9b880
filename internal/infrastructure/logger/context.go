package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ShopDomainKey is the context key for the sending shop domain
	ShopDomainKey contextKey = "shop_domain"
	// DeliveryIDKey is the context key for the webhook delivery ID
	DeliveryIDKey contextKey = "delivery_id"
	// ExternalOrderIDKey is the context key for the platform order ID being reconciled
	ExternalOrderIDKey contextKey = "external_order_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// FromContextOr retrieves the logger from context, returning fallback if none is attached
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return fallback
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withField(ctx, logger, RequestIDKey, requestID)
}

// WithShopDomain adds the shop domain to context and returns enriched logger
func WithShopDomain(ctx context.Context, logger *zap.Logger, domain string) (context.Context, *zap.Logger) {
	return withField(ctx, logger, ShopDomainKey, domain)
}

// WithDeliveryID adds the webhook delivery ID to context and returns enriched logger
func WithDeliveryID(ctx context.Context, logger *zap.Logger, deliveryID string) (context.Context, *zap.Logger) {
	return withField(ctx, logger, DeliveryIDKey, deliveryID)
}

// WithExternalOrderID adds the platform order ID to context and returns enriched logger
func WithExternalOrderID(ctx context.Context, logger *zap.Logger, id int64) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, ExternalOrderIDKey, id)
	enriched := logger.With(zap.Int64(string(ExternalOrderIDKey), id))
	return WithContext(ctx, enriched), enriched
}

func withField(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := logger.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetShopDomain retrieves the shop domain from context
func GetShopDomain(ctx context.Context) string {
	return stringValue(ctx, ShopDomainKey)
}

// GetDeliveryID retrieves the webhook delivery ID from context
func GetDeliveryID(ctx context.Context) string {
	return stringValue(ctx, DeliveryIDKey)
}

// GetExternalOrderID retrieves the platform order ID from context
func GetExternalOrderID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ExternalOrderIDKey).(int64)
	return id, ok
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID extracts the trace ID from the context's span.
// Returns an empty string if no active span exists or trace is invalid.
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// L returns the context logger enriched with trace_id and span_id when the
// context carries a valid span.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	return withSpan(ctx, FromContext(ctx))
}

// LOr is L with a fallback logger for contexts without one
func LOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	return withSpan(ctx, FromContextOr(ctx, fallback))
}

func withSpan(ctx context.Context, l *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
