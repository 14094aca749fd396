package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dvloznov/txn-quality/internal/app"
	"github.com/dvloznov/txn-quality/internal/config"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "txq",
		Short:         "Transaction timestamp normalization and quality reporting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	cmd.AddCommand(newIngestCommand(opts))
	cmd.AddCommand(newUploadCommand(opts))
	cmd.AddCommand(newReportCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

// setup loads configuration and returns a context carrying a stderr logger.
func (o *rootOptions) setup(cmd *cobra.Command) (context.Context, *config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}

	level := cfg.LogLevel
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	log := logger.NewConsole(os.Stderr, level)
	return logger.WithContext(cmd.Context(), log), cfg, log, nil
}

// services opens the configured backend. Callers must Close the result.
func (o *rootOptions) services(cmd *cobra.Command) (context.Context, *app.Services, error) {
	ctx, cfg, log, err := o.setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	// Metrics are not exported from the CLI.
	svc, err := app.Build(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	return ctx, svc, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
