package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/metrics"
)

// unmatchedRoute labels requests no registered pattern accepts, so 404 scans
// cannot grow the label set.
const unmatchedRoute = "unmatched"

// RouteLabel names the route a request is recorded under.
type RouteLabel func(r *http.Request) string

// MuxRoute labels a request with the path of the pattern mux dispatches it
// to, e.g. "/api/v1/terms/{term}", so wildcard values never become labels.
func MuxRoute(mux *http.ServeMux) RouteLabel {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			return unmatchedRoute
		}
		// Drop the method; it has a label of its own.
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			pattern = pattern[i+1:]
		}
		return pattern
	}
}

// Metrics records request count, latency and the in-flight gauge per route.
// The route is resolved before the handler runs, so handlers that rewrite
// the request do not change its label.
func Metrics(m *metrics.Metrics, route RouteLabel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := route(r)
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}
