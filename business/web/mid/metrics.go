package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/metacrafters/atm/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
)

// m contains the set of collectors that are tracked.
var m = struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}{
	requests: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atm_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path"},
	),
	errors: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atm_http_errors_total",
			Help: "Total number of HTTP requests that ended with an error.",
		},
		[]string{"method", "path"},
	),
	duration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atm_http_request_duration_seconds",
			Help:    "Histogram of response latency (seconds) for HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	),
}

func init() {
	prometheus.MustRegister(m.requests, m.errors, m.duration)
}

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			// Call the next handler.
			err := handler(ctx, w, r)

			// Increment the request counter and record the latency.
			m.requests.WithLabelValues(r.Method, r.URL.Path).Inc()
			m.duration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())

			// Increment the errors counter if an error occurred on this request.
			if err != nil {
				m.errors.WithLabelValues(r.Method, r.URL.Path).Inc()
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return mw
}
