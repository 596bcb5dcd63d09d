package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dynquery/internal/app"
	"dynquery/internal/catalog"
	"dynquery/internal/config"
	"dynquery/internal/service/query"
)

func newCompileCmd() *cobra.Command {
	var (
		catalogPath string
		offset      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "compile <request.json|->",
		Short: "Compile an object request to SQL without a server",
		Long:  "Compile an object request against a local schema catalog and print the SQL a dry run would return. Nothing is executed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readRequestFile(cmd, args[0])
			if err != nil {
				return err
			}
			var req query.ObjectRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return fmt.Errorf("decode request: %w", err)
			}
			req.DryRun = true

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			holder, err := catalog.NewHolder(catalogPath, logger)
			if err != nil {
				return err
			}
			svc := query.NewService(holder, nil, nil, offset, logger)
			resp, err := svc.GetObject(cmd.Context(), req)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.SQL)
			return err
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "catalog.yaml", "Schema catalog file")
	cmd.Flags().DurationVar(&offset, "source-tz-offset", 2*time.Hour, "Shift applied to normalized datetime filters")
	return cmd
}

func newServeCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query service HTTP server",
		Long:  "Run the HTTP server configured from the environment (and an optional .env file).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := app.NewLogger(cfg)
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			ctx, cancel := signal.NotifyContext(contextOf(cmd), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()
			return app.Serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
