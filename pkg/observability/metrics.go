package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ViewportFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_viewport_fetch_total",
		Help: "Viewport pub fetches by result",
	}, []string{"result"})
	ViewportFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pubmap_viewport_fetch_duration_ms",
		Help:    "Viewport pub fetch duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	ViewportLoadSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_viewport_load_skipped_total",
		Help: "Viewport load requests dropped before fetching, by reason",
	}, []string{"reason"})
	DatasetMergeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_dataset_merge_total",
		Help: "Dataset merges by outcome",
	}, []string{"outcome"})
	LODTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_lod_transitions_total",
		Help: "Level of detail transitions by target mode",
	}, []string{"mode"})
	NavigationSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pubmap_navigation_suppressed_total",
		Help: "Viewport events ignored during programmatic navigation",
	})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_geocode_requests_total",
		Help: "Forward geocoding requests by result",
	}, []string{"result"})
	ToggleRollbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_toggle_rollbacks_total",
		Help: "Optimistic toggles rolled back after a failed commit",
	}, []string{"kind"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubmap_active_sessions",
		Help: "Open map sessions",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmap_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pubmap_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(ViewportFetchTotal)
	prometheus.MustRegister(ViewportFetchDurationMs)
	prometheus.MustRegister(ViewportLoadSkippedTotal)
	prometheus.MustRegister(DatasetMergeTotal)
	prometheus.MustRegister(LODTransitionsTotal)
	prometheus.MustRegister(NavigationSuppressedTotal)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(ToggleRollbacksTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
}

// Handler exposes the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// NewMetricsMiddleware records request counts and latency. The route label is the
// ServeMux pattern so path parameters do not explode cardinality.
func NewMetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			HTTPRequestDurationMs.WithLabelValues(r.Method, route).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
