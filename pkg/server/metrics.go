package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdh",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests processed, partitioned by method and status code.",
	}, []string{"method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cdh",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency. Provisioning requests include provider round trips.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method"})

	lockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cdh",
		Subsystem: "locks",
		Name:      "conflicts_total",
		Help:      "Requests rejected because the target entity was locked.",
	})
)

// CountLockConflict records one rejected request for the lock conflict
// counter.
func CountLockConflict() {
	lockConflictsTotal.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
