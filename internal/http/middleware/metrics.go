// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// Prometheus instrumentation. Labels are bounded: path is the registered
// route ("unmatched" otherwise) and principal is one of parent, toy or
// anonymous, never an identifier.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toy_http_requests_total",
			Help: "HTTP requests by method, route, status and principal kind.",
		},
		[]string{"method", "path", "status", "principal"},
	)

	// Status is left off to keep the histogram small.
	httpLat = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toy_http_requests_inflight",
			Help: "HTTP requests currently being served.",
		},
	)

	// Answers and audit pages are small JSON documents.
	httpRespSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toy_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 8), // 128B..2MiB
		},
		[]string{"method", "path"},
	)

	authRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toy_http_auth_rejections_total",
			Help: "Requests rejected by authentication middleware, by scheme.",
		},
		[]string{"scheme"},
	)
)

// unmatchedPath labels requests that hit no registered route.
const unmatchedPath = "unmatched"

// Principal kinds used as metric labels.
const (
	principalParent    = "parent"
	principalToy       = "toy"
	principalAnonymous = "anonymous"
)

// RecordAuthRejection counts a request refused by scheme
// ("bearer", "admin" or "api_key").
func RecordAuthRejection(scheme string) {
	authRejections.WithLabelValues(scheme).Inc()
}

// principalKind reports which authentication middleware accepted the request.
func principalKind(c *gin.Context) string {
	switch {
	case c.GetString(ctxKeyUserID) != "":
		return principalParent
	case c.GetString(ctxKeyAPIKeyID) != "":
		return principalToy
	default:
		return principalAnonymous
	}
}

// Metrics instruments every request. Mount it before the route groups so
// that rejected and unmatched requests are counted too:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status()), principalKind(c)).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
