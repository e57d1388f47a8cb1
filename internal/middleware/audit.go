package middleware

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
)

// bodyCaptureWriter tees the response body into a buffer while it is
// written to the client.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// AuditLogger records every HTTP round-trip: method, URL, request and
// response bodies, status, and the tenant the handler resolved. Requests
// whose path ends in /audit-logs are excluded so polling the log does not
// grow it. Logging failures never alter the response.
func AuditLogger(auditRepo *repository.AuditRepository, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasSuffix(path, "/audit-logs") || isOperational(path) {
			c.Next()
			return
		}

		var requestBody *string
		if c.Request.Method != "GET" && c.Request.Method != "HEAD" && c.Request.Body != nil {
			if raw, err := io.ReadAll(c.Request.Body); err == nil {
				c.Request.Body = io.NopCloser(bytes.NewReader(raw))
				s := string(raw)
				requestBody = &s
			}
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		entry := &models.AuditLog{
			Method:         c.Request.Method,
			URL:            c.Request.URL.RequestURI(),
			RequestBody:    requestBody,
			ResponseStatus: writer.Status(),
			CreatedAt:      time.Now().UTC(),
		}
		if body := writer.body.String(); body != "" {
			entry.ResponseBody = &body
		}
		if tid, ok := TenantID(c); ok && tid != uuid.Nil {
			entry.TenantID = &tid
		}

		// Detached context: the round-trip is already complete and the
		// record should survive a client disconnect.
		if err := auditRepo.Create(context.Background(), entry); err != nil {
			logger.WithError(err).Warn("Failed to write audit log entry")
		}
	}
}

// isOperational filters health and metrics probes out of the audit trail
func isOperational(path string) bool {
	switch path {
	case "/health", "/ready", "/metrics":
		return true
	}
	return false
}
