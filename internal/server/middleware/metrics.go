package middleware

import (
	"net/http"
	"time"

	"github.com/pulsedelta/backend/internal/metrics"
)

// Metrics returns middleware that records request counts and latencies. It
// must wrap the ServeMux directly so the matched route pattern is visible
// after the request is served.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.InFlight(1)
			defer m.InFlight(-1)

			rw := wrap(w)
			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}
