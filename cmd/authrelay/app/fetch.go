package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AmmannChristian/go-authrelay/relay"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Call the downstream service once with the service token",
		Long: `Obtain a client-credentials token for downstream.registration, call the
downstream service once and print the response body.`,
		RunE: runFetch,
	}
	cmd.Flags().String("path", "", "Downstream path (defaults to downstream.path)")
	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Downstream.BaseURL == "" || cfg.Downstream.Registration == "" {
		return errors.New("fetch requires downstream.base_url and downstream.registration")
	}
	// Inbound validation plays no part in a one-shot call.
	cfg.Inbound.IssuerURL = ""

	c, err := buildComponents(cmd.Context(), cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build relay: %w", err)
	}
	defer c.close()

	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = cfg.Downstream.Path
	}

	body, err := c.relay.Fetch(cmd.Context(), relay.StrategyClientCredentials, path)
	if err != nil {
		return fmt.Errorf("fetch %s failed (%d): %w", path, relay.HTTPStatus(err), err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}
