package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsStartedTotal    prometheus.Counter
	SessionsTerminatedTotal *prometheus.CounterVec
	SessionsReapedTotal     prometheus.Counter
	SessionConflictsTotal   prometheus.Counter
	HeartbeatsTotal         prometheus.Counter
	ActiveSessions          prometheus.Gauge

	// Entitlement metrics
	GrantsEvaluatedTotal *prometheus.CounterVec
	CreditsDebitedTotal  prometheus.Counter
	CreditsGrantedTotal  prometheus.Counter
	RegistrationsTotal   *prometheus.CounterVec

	// Purchase metrics
	CheckoutsOpenedTotal prometheus.Counter
	PurchasesClosedTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registrar_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registrar_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registrar_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsStartedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_sessions_started_total",
				Help: "Total number of bot sessions started",
			},
		),
		SessionsTerminatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_sessions_terminated_total",
				Help: "Total number of bot sessions terminated",
			},
			[]string{"reason"},
		),
		SessionsReapedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_sessions_reaped_total",
				Help: "Total number of stale sessions closed by the reaper",
			},
		),
		SessionConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_session_conflicts_total",
				Help: "Total number of session starts rejected because one was already active",
			},
		),
		HeartbeatsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_heartbeats_total",
				Help: "Total number of session heartbeats received",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "registrar_active_sessions",
				Help: "Number of currently active bot sessions",
			},
		),

		// Entitlement metrics
		GrantsEvaluatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_grants_evaluated_total",
				Help: "Total number of grant level evaluations",
			},
			[]string{"level"},
		),
		CreditsDebitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_credits_debited_total",
				Help: "Total number of credits debited for registrations",
			},
		),
		CreditsGrantedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_credits_granted_total",
				Help: "Total number of credits granted from completed purchases",
			},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_registrations_total",
				Help: "Total number of course registrations reported",
			},
			[]string{"outcome"},
		),

		// Purchase metrics
		CheckoutsOpenedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_checkouts_opened_total",
				Help: "Total number of checkout sessions opened",
			},
		),
		PurchasesClosedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_purchases_closed_total",
				Help: "Total number of purchase sessions closed",
			},
			[]string{"outcome"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "registrar_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "registrar_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.SessionsStartedTotal,
		m.SessionsTerminatedTotal,
		m.SessionsReapedTotal,
		m.SessionConflictsTotal,
		m.HeartbeatsTotal,
		m.ActiveSessions,
		m.GrantsEvaluatedTotal,
		m.CreditsDebitedTotal,
		m.CreditsGrantedTotal,
		m.RegistrationsTotal,
		m.CheckoutsOpenedTotal,
		m.PurchasesClosedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
