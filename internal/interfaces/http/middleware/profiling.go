package middleware

import (
	"context"

	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling attaches route and shop labels to the CPU samples taken while
// serving a request. Health checks are not labelled.
func Profiling(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if !enabled || route == "" || route == "/health" || route == "/health/ready" {
			c.Next()
			return
		}
		labels := map[string]string{
			"method": c.Request.Method,
			"route":  route,
			"shop":   c.GetHeader(ShopDomainHeader),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
