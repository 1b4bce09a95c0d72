package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bureau.org/internal/ids"
)

// HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Domain metrics.
var (
	assessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bureau_assessments_total",
			Help: "Danger assessments recorded, by assessor role.",
		},
		[]string{"role"},
	)

	permissionDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bureau_permission_denied_total",
			Help: "Requests refused by the authorization policy, by capability.",
		},
		[]string{"capability"},
	)

	backendFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bureau_backend_fallback_total",
			Help: "Operations served from fallback data while a backend was unreachable.",
		},
		[]string{"operation"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			assessmentsTotal, permissionDeniedTotal, backendFallbackTotal,
			buildInfo,
		)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAssessment counts one assessment by the assessor's role.
func RecordAssessment(role string) {
	assessmentsTotal.WithLabelValues(role).Inc()
}

// RecordPermissionDenied counts one refusal for capability.
func RecordPermissionDenied(capability string) {
	permissionDeniedTotal.WithLabelValues(capability).Inc()
}

// RecordFallback counts one degraded response for operation.
func RecordFallback(operation string) {
	backendFallbackTotal.WithLabelValues(operation).Inc()
}

// Instrument measures request rate, latency and concurrency. The path label
// is the matched chi route pattern when there is one, CanonicalPath otherwise.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			path = rc.RoutePattern()
		}
		if path == "" {
			path = CanonicalPath(r.URL.Path)
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath strips the query and replaces identifier segments with ":id"
// so that label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == "/" {
		return "/"
	}
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		if ids.Valid(s) {
			segs[i] = ":id"
		}
	}
	return "/" + strings.Join(segs, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers work through the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
