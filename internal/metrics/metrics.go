// Package metrics provides Prometheus instrumentation for the bridge gateway.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgegate",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bridgegate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// QuotesBuiltTotal counts quote requests by gateway role and result.
	QuotesBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgegate",
			Name:      "quotes_built_total",
			Help:      "Total bridge quote requests by role (sender/receiver) and result.",
		},
		[]string{"role", "result"},
	)

	// PaymentsAcceptedTotal counts accepted bridge payments by role and result.
	PaymentsAcceptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgegate",
			Name:      "payments_accepted_total",
			Help:      "Total bridge payment accepts by role (source/destination) and result.",
		},
		[]string{"role", "result"},
	)

	// PathfindRequestsTotal counts ledger pathfinding calls by result.
	PathfindRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgegate",
			Name:      "pathfind_requests_total",
			Help:      "Total ledger pathfinding requests by result.",
		},
		[]string{"result"},
	)

	// PathfindDuration observes latency of ledger pathfinding calls.
	PathfindDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bridgegate",
		Name:      "pathfind_duration_seconds",
		Help:      "Ledger pathfinding request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// PeerRequestsTotal counts outbound calls to counterpart gateways.
	PeerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgegate",
			Name:      "peer_requests_total",
			Help:      "Total outbound peer gateway requests by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// ActiveWebSocketClients tracks connected event stream clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bridgegate",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgegate", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgegate", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgegate", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgegate", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotesBuiltTotal,
		PaymentsAcceptedTotal,
		PathfindRequestsTotal,
		PathfindDuration,
		PeerRequestsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
