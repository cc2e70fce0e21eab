package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
)

// Timeout cancels the request context after timeout and answers 504 if the
// handler has not started its response by then. Writes made by the handler
// after the deadline are discarded.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				if ctx.Err() != context.DeadlineExceeded {
					return
				}
			case <-ctx.Done():
			}
			tw.mu.Lock()
			defer tw.mu.Unlock()
			tw.timedOut = true
			if tw.written {
				return
			}
			err := apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "request exceeded %s", timeout)
			slog.Warn("request timed out",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
				"request_id", GetRequestID(r.Context()),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(apperrors.HTTPStatusCode(err))
			json.NewEncoder(w).Encode(map[string]string{"error": err.Message})
		})
	}
}

type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	written  bool
	timedOut bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.written = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.written = true
	return tw.ResponseWriter.Write(b)
}
