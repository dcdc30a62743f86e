// Package app provides the commands of the authrelay binary.
package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AmmannChristian/go-authrelay/internal/config"
)

// version is injected at build time with -ldflags "-X ...app.version=...".
var version = "dev"

// NewRootCmd creates the root command of the authrelay CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "authrelay",
		DisableAutoGenTag: true,
		Short:             "OAuth2 token relay for downstream resource servers",
		Long: `authrelay obtains, caches and propagates OAuth2 bearer tokens so that
downstream resource servers can authorize requests without re-authenticating
the end user.

Every outbound call uses exactly one token source: the validated inbound token
of the caller (propagation) or a service token obtained with the
client-credentials grant.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error(fmt.Sprintf("Error displaying help: %v", err))
			}
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), viper.GetBool("debug")))
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error(fmt.Sprintf("Error binding debug flag: %v", err))
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the authrelay configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error(fmt.Sprintf("Error binding config flag: %v", err))
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newResourceCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "authrelay version: %s\n", version)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the authrelay configuration without contacting any identity provider.

This command checks:
- YAML syntax and field types
- Required registration fields
- The downstream registration reference`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath := viper.GetString("config")
			if configPath == "" {
				return fmt.Errorf("no configuration file specified, use --config flag")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", configPath)
			fmt.Fprintf(cmd.OutOrStdout(), "  Registrations: %v\n", cfg.RegistrationIDs())
			if cfg.Downstream.BaseURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  Downstream: %s\n", cfg.Downstream.BaseURL)
			}
			return nil
		},
	}
}

// loadConfig reads the file named by --config and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}
