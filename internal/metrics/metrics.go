// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantedge_requests_total",
		Help: "Total HTTP requests by method, route, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenantedge_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	routeDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantedge_route_decisions_total",
		Help: "Hostname routing decisions by kind.",
	}, []string{"kind"})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantedge_domain_verifications_total",
		Help: "Domain verification attempts by resulting status.",
	}, []string{"status"})

	domainsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tenantedge_domains",
		Help: "Custom domains by status, as of the last re-check pass.",
	}, []string{"status"})

	siteCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantedge_site_cache_total",
		Help: "Tenant page cache lookups by result (hit, stale, miss, revalidate, error).",
	}, []string{"result"})
)

// Middleware returns a Gin middleware that records per-request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		requestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns a Gin handler that serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordRouteDecision counts one hostname routing decision.
func RecordRouteDecision(kind string) {
	routeDecisionsTotal.WithLabelValues(kind).Inc()
}

// RecordVerification counts one verification attempt that ended in status.
func RecordVerification(status string) {
	verificationsTotal.WithLabelValues(status).Inc()
}

// SetDomains sets the number of domains currently in status.
func SetDomains(status string, n int) {
	domainsGauge.WithLabelValues(status).Set(float64(n))
}

// RecordSiteCache counts one page cache event.
func RecordSiteCache(result string) {
	siteCacheTotal.WithLabelValues(result).Inc()
}
