package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Server exposes one registry on a dedicated scrape port, apart from the
// search API listener.
type Server struct {
	srv *http.Server
}

// NewServer builds the scrape server for g. Nothing listens until Start.
func NewServer(port int, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(g))
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
	}}
}

// Handler returns the server's router, for tests that skip the listener.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start listens in the background. A listener failure is logged.
func (s *Server) Start() {
	log := slog.Default().With("component", "metrics")
	go func() {
		log.Info("metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
