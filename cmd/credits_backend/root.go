package main

import (
	"log/slog"
	"os"

	"github.com/SscSPs/deck_credits/internal/platform/config"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE so flags are parsed before config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "credits_backend",
		Short:         "Credit metering and subscription plan-change service",
		Long:          "credits_backend serves the credit ledger API and Stripe webhook, runs database migrations and grants credits by hand.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.init()
		},
		// No subcommand means serve, so the container entrypoint stays the bare binary.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}

	rootCmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newGrantCmd(a),
		newTokenCmd(a),
	)

	return rootCmd
}

func (a *app) init() error {
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
		slog.SetDefault(a.logger)
	}
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		a.logger.Error("Failed to load config", slog.String("error", err.Error()))
		return err
	}
	a.cfg = cfg
	return nil
}
