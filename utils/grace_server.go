package utils

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = DefaultReadTimeout
	DefaultShutdownTimeout = 30 * time.Second
)

// Server is an http.Server that drains in-flight requests on SIGTERM or SIGINT.
type Server struct {
	*http.Server

	log             *zap.Logger
	shutdownTimeout time.Duration
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       DefaultReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      DefaultWriteTimeout,
		},
		log:             logger,
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// Serve accepts connections on ln until ctx is done or a termination signal arrives, then
// shuts down gracefully. It returns nil after a clean shutdown.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	srv.log.Info("shutting down HTTP server", zap.String("addr", ln.Addr().String()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.log.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	srv.log.Info("HTTP server shutdown success")
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GraceServer listens on addr and serves handler until ctx ends or the process is signalled.
func GraceServer(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return NewServer(addr, handler, logger).Serve(ctx, ln)
}
