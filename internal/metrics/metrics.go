// Package metrics provides Prometheus instrumentation for the orchestrator.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FlowStepsTotal counts orchestrator steps by flow, step and outcome.
	FlowStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentfi",
			Name:      "flow_steps_total",
			Help:      "Total orchestrator steps by flow, step and status.",
		},
		[]string{"flow", "step", "status"},
	)

	// FlowsTotal counts finished flows: ok, degraded or failed.
	FlowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentfi",
			Name:      "flows_total",
			Help:      "Total orchestrator flows by outcome.",
		},
		[]string{"flow", "outcome"},
	)

	SignalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentfi",
			Name:      "signals_generated_total",
			Help:      "Total persisted trading signals by generator source and signal type.",
		},
		[]string{"source", "type"},
	)

	// HealthStatus is 1 when the component's last probe passed.
	HealthStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agentfi",
			Name:      "health_status",
			Help:      "Result of the last health probe per component (1 healthy, 0 unhealthy).",
		},
		[]string{"component"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentfi",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentfi",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentfi",
		Name:      "db_open_connections",
		Help:      "Number of open database connections.",
	})

	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentfi",
		Name:      "db_in_use_connections",
		Help:      "Number of database connections in use.",
	})

	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentfi",
		Name:      "goroutines",
		Help:      "Number of running goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		FlowStepsTotal,
		FlowsTotal,
		SignalsGenerated,
		HealthStatus,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector samples sql.DBStats and the goroutine count into
// gauges. Call in a goroutine; exits when ctx is done.
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
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency keyed by the mux pattern,
// not the raw path, to keep label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, statusBucket(rec.status)).Inc()
	})
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
