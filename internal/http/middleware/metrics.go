// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the Prometheus collectors: generic HTTP traffic metrics
// plus two domain counters for report generation and credit spend. Labels
// stay bounded because the path label uses the registered route pattern,
// never the raw URL.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// No status label on the latency histogram, cardinality is expensive here.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Buckets sized for JSON payloads: small envelopes up to full
	// compatibility reports.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		},
		[]string{"method", "path"},
	)

	// reportOutcomes counts fresh report generations by terminal status,
	// "ready" or "failed". Cache hits and idempotent replays are excluded.
	reportOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compat_reports_generated_total",
			Help: "Total number of compatibility report generations by outcome.",
		},
		[]string{"status"},
	)

	// creditsSpent counts debited credits by the operation that consumed
	// them, "check" or "invite".
	creditsSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compat_credits_spent_total",
			Help: "Total number of compatibility credits consumed.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize,
		reportOutcomes, creditsSpent)
}

// ObserveReportOutcome records one fresh report generation with its terminal
// status.
func ObserveReportOutcome(status string) {
	reportOutcomes.WithLabelValues(status).Inc()
}

// ObserveCreditSpent records one consumed compatibility credit.
func ObserveCreditSpent(op string) {
	creditsSpent.WithLabelValues(op).Inc()
}

// Metrics instruments every request: a counter by method/path/status, a
// latency histogram, an in-flight gauge and a response-size histogram.
// Expose the scrape endpoint separately via promhttp.Handler.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		method := c.Request.Method
		path := routePath(c)
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when the handler hijacked the connection or wrote nothing.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
