package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

// resourceGreeting is the body of the demo resource.
const resourceGreeting = "Hello From Resource Server"

func newResourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resource",
		Short: "Start the demo resource server",
		Long: `Start a resource server that answers GET /data for callers presenting a
bearer token accepted by the inbound configuration.`,
		RunE: runResource,
	}
}

func runResource(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Inbound.IssuerURL == "" {
		return errors.New("resource requires inbound.issuer_url and inbound.audience")
	}
	// The resource server only validates tokens.
	cfg.Registrations = nil
	cfg.Downstream.BaseURL = ""

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build resource server: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Resource.Address,
		Handler:           newResourceRouter(c),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	return runHTTPServer(ctx, server, cfg.Server.TLS, cfg.Server.ShutdownTimeout, logger)
}

func newResourceRouter(c *components) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.With(c.authenticate()).Get("/data", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(resourceGreeting))
	})
	return r
}
