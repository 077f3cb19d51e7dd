// Package monitor exposes the process's Prometheus metrics: HTTP request
// counts/latency, live chat connections, and score pipeline throughput.
package monitor

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "server_http_requests_total",
		Help: "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "server_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "server_build_info",
		Help: "Build metadata, value is always 1.",
	}, []string{"version", "go_version"})

	// ScoresSubmitted counts accepted Phase B submissions by ruleset.
	ScoresSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "server_scores_submitted_total",
		Help: "Accepted score submissions by ruleset.",
	}, []string{"ruleset"})

	// ChatConnections gauges the number of open chat WebSockets.
	ChatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "server_chat_connections",
		Help: "Currently open chat WebSocket connections.",
	})
)

// SetBuildInfo stamps the build-info gauge once at startup.
func SetBuildInfo(version, goVersion string) {
	buildInfo.WithLabelValues(version, goVersion).Set(1)
}

// GinMiddleware records request count and latency per route. The route
// template (not the raw path) is used as the label so cardinality stays
// bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
