package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"careercoach/internal/observability"
)

const shutdownTimeout = 30 * time.Second

// Start serves HTTP until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	om, err := s.initializeObservability()
	if err != nil {
		return err
	}
	defer s.shutdownObservability(om)
	s.SetMetrics(om.GetMetrics())

	httpServer := s.setupHTTPServer(om)

	if err := s.startPromptWatcher(); err != nil {
		s.Logger.LogError(err, "Prompt reload disabled")
	}
	if err := s.startCredentialWatcher(); err != nil {
		s.Logger.LogError(err, "Credential reload disabled")
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(ctx, httpServer)
}

func (s *Server) initializeObservability() (*observability.ObservabilityManager, error) {
	om, err := observability.NewObservabilityManager(
		observability.GetObservabilityConfig(s.AppConfig, s.Version), s.AppConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// Handler returns the routed handler without observability middleware
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      om.HTTPMiddleware()(s.setupRoutes()),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startWithGracefulShutdown binds the listener up front so a port already in
// use is reported as a startup error, then serves until ctx is canceled.
func (s *Server) startWithGracefulShutdown(ctx context.Context, server *http.Server) error {
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.stopBackground()
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.Logger.Info("Starting HTTP server",
		"address", listener.Addr().String(),
		"tls_enabled", s.TLSConfig.Enabled())

	serverErrors := make(chan error, 1)
	go func() {
		var err error
		if s.TLSConfig.Enabled() {
			err = server.ServeTLS(listener, s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
		} else {
			err = server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.stopBackground()
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	err := server.Shutdown(shutdownCtx)
	s.stopBackground()
	if err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// stopBackground stops watchers and session janitors
func (s *Server) stopBackground() {
	if s.promptWatcher != nil {
		if err := s.promptWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop prompt watcher")
		}
	}
	if s.credentialWatcher != nil {
		if err := s.credentialWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop credential watcher")
		}
	}
	s.Close()
}
