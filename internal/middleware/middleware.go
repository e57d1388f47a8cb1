package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const tenantIDKey = "tenant_id"

// RequestID attaches a request id to each request, honoring an inbound
// X-Request-ID header when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger logs each request with method, path, status and latency
func StructuredLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString("request_id"),
		}
		if tid, ok := TenantID(c); ok {
			fields[tenantIDKey] = tid
		}
		entry := logger.WithFields(fields)
		if c.Writer.Status() >= 500 {
			entry.Error("Request failed")
		} else {
			entry.Debug("Request handled")
		}
	}
}

// SetTenantID records the resolved tenant on the request context. Handlers
// call it right after resolution; the audit layer reads it after the
// handler returns.
func SetTenantID(c *gin.Context, tenantID uuid.UUID) {
	c.Set(tenantIDKey, tenantID)
}

// TenantID reads the resolved tenant from the request context.
func TenantID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(tenantIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
