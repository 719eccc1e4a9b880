// Package router assembles the gin engine of the webhook server.
package router

import (
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar mounts a handler's routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config selects the optional middleware
type Config struct {
	ServiceName      string
	TracingEnabled   bool
	ProfilingEnabled bool
	// Meter enables HTTP metrics when not nil
	Meter        metric.Meter
	MaxBodyBytes int64
}

// New builds an engine with request ID, tracing, logging, recovery, metrics,
// profiling labels and body limit middleware, then mounts registrars at the
// root
func New(cfg Config, log *zap.Logger, registrars ...RouteRegistrar) (*gin.Engine, error) {
	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled)...)
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	if cfg.Meter != nil {
		metrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, err
		}
		engine.Use(metrics)
	}
	engine.Use(middleware.Profiling(cfg.ProfilingEnabled))
	if cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}

	root := engine.Group("/")
	for _, r := range registrars {
		r.RegisterRoutes(root)
	}
	return engine, nil
}
