package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/tesla-exporter/pkg/log"
	"github.com/autopeer-io/tesla-exporter/pkg/options"
)

// ReadinessChecker reports whether the first poll attempt has completed.
type ReadinessChecker interface {
	Ready() bool
}

// Server exposes the scrape endpoint and the probes.
type Server struct {
	server  *http.Server
	options *options.HttpOptions
	logger  log.Logger
}

// NewServer serves gatherer under opts.MetricsPath.
func NewServer(opts *options.HttpOptions, gatherer prometheus.Gatherer, ready ReadinessChecker) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewHandler(opts.MetricsPath, gatherer, ready),
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
		},
		options: opts,
		logger:  log.WithName("http"),
	}
}

// NewHandler builds the router.
func NewHandler(metricsPath string, gatherer prometheus.Gatherer, ready ReadinessChecker) http.Handler {
	r := mux.NewRouter()

	r.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})).Methods(http.MethodGet, http.MethodHead)

	// Liveness
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet, http.MethodHead)

	// Readiness only flips once a poll attempt has run, successful or not.
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !ready.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("waiting for first poll"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet, http.MethodHead)

	return r
}

// Start listens until ctx is done and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP Server", "addr", ln.Addr().String(), "metricsPath", s.options.MetricsPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.options.ShutdownTimeout)
		defer cancel()
		s.logger.Info("Stopping HTTP Server")
		return s.server.Shutdown(shutdownCtx)
	}
}

// promLogger forwards promhttp errors to the exporter log.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Warn("Metrics exposition error", "detail", v)
}
