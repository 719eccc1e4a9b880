package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ShopDomainHeader names the sending shop on webhook requests
const ShopDomainHeader = "X-Shopify-Shop-Domain"

// Tracing returns the otelgin server span middleware followed by a handler
// tagging that span with the request ID and the sending shop domain.
// Disabled tracing yields no handlers.
func Tracing(serviceName string, enabled bool) []gin.HandlerFunc {
	if !enabled {
		return nil
	}
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), spanAttributes()}
}

func spanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := GetRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if domain := c.GetHeader(ShopDomainHeader); domain != "" {
				span.SetAttributes(attribute.String("shop.domain", domain))
			}
		}
		c.Next()
	}
}
