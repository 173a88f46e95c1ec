// Package observability hosts the operational HTTP surface of the
// scribe service: Prometheus metrics plus liveness and readiness
// probes. It is separate from the clinician-facing feed server so that
// scraping never competes with live display traffic.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server exposes /metrics, /healthz, and /readyz on its own listener.
type Server struct {
	server *http.Server
	addr   string
}

// NewServer builds the observability server for the given address.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine. Listen errors other
// than a clean close are logged, not returned; losing the metrics
// endpoint must not take the pipeline down with it.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("observability endpoints listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("observability server failed")
		}
	}()
}

// Shutdown stops the server, waiting for in-flight scrapes up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("stopping observability endpoints")
	return s.server.Shutdown(ctx)
}
