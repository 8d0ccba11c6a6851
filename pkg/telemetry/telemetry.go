// Package telemetry exposes Prometheus metrics for the chat server.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutorchat",
		Name:      "requests_total",
		Help:      "HTTP requests by path and status.",
	}, []string{"path", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tutorchat",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by path.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})

	TurnsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutorchat",
		Name:      "turns_appended_total",
		Help:      "Turns appended to the message log, by role.",
	}, []string{"role"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tutorchat",
		Name:      "inference_duration_seconds",
		Help:      "Wall time of gateway streaming calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	FirstFragmentSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tutorchat",
		Name:      "first_fragment_seconds",
		Help:      "Latency until the first streamed fragment.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	InferenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tutorchat",
		Name:      "inference_failures_total",
		Help:      "Gateway calls that ended in a persisted error turn.",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tutorchat",
		Name:      "active_streams",
		Help:      "Streaming responses currently in flight.",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working behind the
// middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency per path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		RequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
