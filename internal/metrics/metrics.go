// Package metrics records per-endpoint response latencies. The rolling
// windows back the admin performance report; the prometheus registry backs
// the /metrics scrape endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxSamples caps each rolling latency window.
const maxSamples = 100

// TrackedEndpoints is the fixed set of request paths reported by the admin
// performance endpoint.
var TrackedEndpoints = []string{
	"/api/upload",
	"/api/history",
	"/api/auth/login",
}

// Registry holds per-instance request metrics. Windows are reset on process
// restart and are not shared across instances.
type Registry struct {
	mu      sync.Mutex
	samples map[string][]float64

	prom     *prometheus.Registry
	duration *prometheus.HistogramVec
}

// NewRegistry constructs a Registry tracking the given endpoints, or
// TrackedEndpoints when none are given.
func NewRegistry(tracked ...string) *Registry {
	if len(tracked) == 0 {
		tracked = TrackedEndpoints
	}

	samples := make(map[string][]float64, len(tracked))
	for _, endpoint := range tracked {
		samples[endpoint] = nil
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sheetlytics",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	prom := prometheus.NewRegistry()
	prom.MustRegister(
		duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		samples:  samples,
		prom:     prom,
		duration: duration,
	}
}

// Observe records a latency sample for a tracked endpoint. Samples for
// untracked paths are ignored.
func (reg *Registry) Observe(path string, ms float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	window, ok := reg.samples[path]
	if !ok {
		return
	}
	window = append(window, ms)
	if len(window) > maxSamples {
		window = window[len(window)-maxSamples:]
	}
	reg.samples[path] = window
}

// Averages returns the mean of each tracked endpoint's window in
// milliseconds. Endpoints with no samples yet map to nil, which serializes
// as JSON null.
func (reg *Registry) Averages() map[string]*float64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	averages := make(map[string]*float64, len(reg.samples))
	for endpoint, window := range reg.samples {
		if len(window) == 0 {
			averages[endpoint] = nil
			continue
		}
		var sum float64
		for _, sample := range window {
			sum += sample
		}
		mean := sum / float64(len(window))
		averages[endpoint] = &mean
	}
	return averages
}

// Middleware measures every request, feeding both the prometheus histogram
// and the rolling windows for tracked endpoints.
func (reg *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		reg.duration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(elapsed.Seconds())

		reg.Observe(r.URL.Path, float64(elapsed)/float64(time.Millisecond))
	})
}

// Handler exposes the prometheus scrape endpoint.
func (reg *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(reg.prom, promhttp.HandlerOpts{})
}
