package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	// RowsCreatedCounter counts rows written through the cell store
	RowsCreatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rows_created_total",
			Help: "Total number of data rows created",
		},
		[]string{"service"},
	)

	// CellsUpdatedCounter counts individual cell value writes
	CellsUpdatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cells_updated_total",
			Help: "Total number of cell values written",
		},
		[]string{"service"},
	)

	// ImportOutcomeCounter counts bulk import results by outcome
	ImportOutcomeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_imports_total",
			Help: "Total number of bulk imports by outcome (completed, partial, aborted)",
		},
		[]string{"service", "outcome"},
	)

	// PermissionDeniedCounter counts denied permission evaluations
	PermissionDeniedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_permission_denied_total",
			Help: "Total number of denied permission checks by action",
		},
		[]string{"service", "action"},
	)

	// SchemaCacheCounter counts schema catalog cache lookups by result
	SchemaCacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_schema_cache_total",
			Help: "Total number of schema cache lookups (hit, miss)",
		},
		[]string{"service", "result"},
	)
)

// HTTPMetrics holds configuration and state for HTTP metrics collection
type HTTPMetrics struct {
	ServiceName string
	initialized bool
}

// NewHTTPMetrics creates a metrics collector for a specific service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	m := &HTTPMetrics{
		ServiceName: serviceName,
	}
	m.register()
	return m
}

// register registers the prometheus metrics if they haven't been registered already
func (m *HTTPMetrics) register() {
	if !m.initialized {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDurationHistogram)
		prometheus.MustRegister(RowsCreatedCounter)
		prometheus.MustRegister(CellsUpdatedCounter)
		prometheus.MustRegister(ImportOutcomeCounter)
		prometheus.MustRegister(PermissionDeniedCounter)
		prometheus.MustRegister(SchemaCacheCounter)
		m.initialized = true
	}
}

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware wraps a handler and records request count and duration.
// Path segments that look like IDs are collapsed to keep label cardinality bounded.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		path := normalizePath(r.URL.Path)
		statusStr := strconv.Itoa(recorder.status)
		RequestCounter.WithLabelValues(m.ServiceName, r.Method, path, statusStr).Inc()
		RequestDurationHistogram.WithLabelValues(m.ServiceName, r.Method, path, statusStr).Observe(time.Since(start).Seconds())
	})
}

// RowsCreated records n rows written. Safe on a nil collector.
func (m *HTTPMetrics) RowsCreated(n int) {
	if m == nil {
		return
	}
	RowsCreatedCounter.WithLabelValues(m.ServiceName).Add(float64(n))
}

// CellUpdated records one cell value write. Safe on a nil collector.
func (m *HTTPMetrics) CellUpdated() {
	if m == nil {
		return
	}
	CellsUpdatedCounter.WithLabelValues(m.ServiceName).Inc()
}

// ImportOutcome records one bulk import result. Safe on a nil collector.
func (m *HTTPMetrics) ImportOutcome(outcome string) {
	if m == nil {
		return
	}
	ImportOutcomeCounter.WithLabelValues(m.ServiceName, outcome).Inc()
}

// PermissionDenied records one denied permission check. Safe on a nil collector.
func (m *HTTPMetrics) PermissionDenied(action string) {
	if m == nil {
		return
	}
	PermissionDeniedCounter.WithLabelValues(m.ServiceName, action).Inc()
}

// SchemaCacheLookup records one cache lookup result ("hit" or "miss"). Safe on a nil collector.
func (m *HTTPMetrics) SchemaCacheLookup(result string) {
	if m == nil {
		return
	}
	SchemaCacheCounter.WithLabelValues(m.ServiceName, result).Inc()
}

// normalizePath replaces UUID path segments with ":id"
func normalizePath(p string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		if _, err := uuid.Parse(segment); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
