package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	defaultShutdownTimeout   = 30 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

// Config holds HTTP server settings.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// ShutdownTimeout bounds graceful shutdown (default 30s).
	ShutdownTimeout time.Duration
}

// Server is the API's HTTP server.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New creates a server for handler. Request contexts derive from the context
// later passed to Run, so in-flight requests see shutdown.
func New(cfg Config, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	readHeader := defaultReadHeaderTimeout
	if cfg.ReadTimeout > 0 && cfg.ReadTimeout < readHeader {
		readHeader = cfg.ReadTimeout
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: readHeader,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve accepts connections on ln until ctx ends, then drains in-flight
// requests for up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", ln.Addr().String())
		serveErr <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// ListenAndServeWithGracefulShutdown listens on the configured address and
// serves until ctx is cancelled or the process gets SIGINT/SIGTERM.
func (s *Server) ListenAndServeWithGracefulShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}
