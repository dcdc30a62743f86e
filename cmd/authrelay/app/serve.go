package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/AmmannChristian/go-authrelay/httpserver"
	"github.com/AmmannChristian/go-authrelay/internal/config"
	"github.com/AmmannChristian/go-authrelay/relay"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay",
		Long: `Start the relay HTTP service.

Routes:
  GET  /healthz       liveness probe
  GET  /metrics       Prometheus metrics
  GET  /proxy         downstream call with the caller's bearer token
  GET  /service/data  downstream call with the relay's service token
  POST /session       start a session for the authenticated caller
  POST /logout        end the session and redirect to the provider logout`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build relay: %w", err)
	}
	defer c.close()

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newRouter(c),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	return runHTTPServer(ctx, server, cfg.Server.TLS, cfg.Server.ShutdownTimeout, logger)
}

// newRouter mounts the relay routes. Routes whose collaborators are not
// configured are left out.
func newRouter(c *components) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Method(http.MethodGet, "/metrics", c.recorder.Handler())

	if c.validator == nil {
		c.logger.Warn("inbound validation is not configured; propagation and session routes are disabled")
		if c.relay != nil && c.cfg.Downstream.Registration != "" {
			r.Method(http.MethodGet, "/service/data", c.relay.Handler(relay.StrategyClientCredentials, c.cfg.Downstream.Path))
		}
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(c.authenticate())

		if c.relay != nil {
			r.Method(http.MethodGet, "/proxy", c.relay.Handler(relay.StrategyPropagation, c.cfg.Downstream.Path))
			if c.cfg.Downstream.Registration != "" {
				r.Method(http.MethodGet, "/service/data", c.relay.Handler(relay.StrategyClientCredentials, c.cfg.Downstream.Path))
			}
		}
		r.Method(http.MethodPost, "/session", c.sessions.Create())
	})

	// Logout is keyed by the session cookie, not by a bearer token.
	r.Method(http.MethodPost, "/logout", c.sessions.Logout())

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// runHTTPServer serves until ctx is canceled and then shuts down gracefully.
func runHTTPServer(ctx context.Context, server *http.Server, tlsCfg config.TLSConfig, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if tlsCfg.Enabled() {
		clientAuth, err := httpserver.ParseClientAuth(tlsCfg.ClientAuth)
		if err != nil {
			return err
		}
		if err := httpserver.ConfigureServer(server, &httpserver.TLSConfig{
			CertFile:   tlsCfg.CertFile,
			KeyFile:    tlsCfg.KeyFile,
			CAFile:     tlsCfg.CAFile,
			ClientAuth: clientAuth,
		}); err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", server.Addr, "tls", server.TLSConfig != nil)
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}
