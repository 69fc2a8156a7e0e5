// Package metrics provides Prometheus instrumentation for the Perkloop platform.
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
			Namespace: "perkloop",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "perkloop",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ValidationsTotal counts fraud validations by outcome
	// (accepted, fraud_suspected, invalid_code, unavailable).
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perkloop",
			Name:      "fraud_validations_total",
			Help:      "Total purchase validations by outcome.",
		},
		[]string{"outcome"},
	)

	// FraudScore observes the distribution of computed fraud scores.
	FraudScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "perkloop",
		Name:      "fraud_score",
		Help:      "Fraud score distribution for scored purchase attempts.",
		Buckets:   []float64{0, 20, 30, 40, 50, 70, 100, 150, 200},
	})

	// SignalsTriggeredTotal counts triggered risk signals by name.
	SignalsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perkloop",
			Name:      "fraud_signals_triggered_total",
			Help:      "Total triggered risk signals by signal name.",
		},
		[]string{"signal"},
	)

	// IdentityLookupsDegradedTotal counts identity lookups that soft-failed.
	IdentityLookupsDegradedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "perkloop",
		Name:      "identity_lookups_degraded_total",
		Help:      "Total identity-provider lookups that failed and were degraded to a signal.",
	})

	// PurchasesTotal counts purchases persisted by status.
	PurchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perkloop",
			Name:      "purchases_total",
			Help:      "Total purchases recorded by status.",
		},
		[]string{"status"},
	)

	// RewardsTotal counts reward state transitions.
	RewardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perkloop",
			Name:      "rewards_total",
			Help:      "Total reward operations by resulting status.",
		},
		[]string{"status"},
	)

	// NotificationDeliveriesTotal counts notification delivery attempts by result.
	NotificationDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perkloop",
			Name:      "notification_deliveries_total",
			Help:      "Total notification deliveries by result.",
		},
		[]string{"result"},
	)

	// ActiveStreamClients tracks connected fraud-stream WebSocket clients.
	ActiveStreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perkloop",
			Name:      "active_stream_clients",
			Help:      "Number of currently connected fraud-stream clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "perkloop", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "perkloop", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "perkloop", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "perkloop", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ValidationsTotal,
		FraudScore,
		SignalsTriggeredTotal,
		IdentityLookupsDegradedTotal,
		PurchasesTotal,
		RewardsTotal,
		NotificationDeliveriesTotal,
		ActiveStreamClients,
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

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
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
