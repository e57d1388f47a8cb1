package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/repository"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordfake_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discordfake_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	tenantsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discordfake_tenants",
		Help: "Current number of tenants",
	})

	auditLogGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discordfake_audit_log_entries",
		Help: "Current number of audit log entries",
	})
)

// Metrics records request counts and latencies labelled by the matched
// route pattern, not the raw path, to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// StartGaugeUpdater refreshes the tenant and audit-log gauges periodically
// until ctx is cancelled.
func StartGaugeUpdater(ctx context.Context, tenantRepo *repository.TenantRepository, auditRepo *repository.AuditRepository, interval time.Duration, logger *logrus.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := tenantRepo.Count(ctx); err == nil {
					tenantsGauge.Set(float64(n))
				} else {
					logger.WithError(err).Debug("Failed to refresh tenant gauge")
				}
				if n, err := auditRepo.Count(ctx); err == nil {
					auditLogGauge.Set(float64(n))
				}
			}
		}
	}()
}
