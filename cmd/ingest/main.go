package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/requirements-guard/internal/bootstrap"
	"github.com/kirillkom/requirements-guard/internal/config"
	"github.com/kirillkom/requirements-guard/internal/observability/logging"
)

const serviceName = "requirements-guard-ingest"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		dir      string
		onlySeed bool
	)
	cmd := &cobra.Command{
		Use:          "ingest",
		Short:        "Load the static knowledge directory into the knowledge store",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("config_load_failed", "error", err)
				return err
			}
			logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
			slog.SetDefault(logger)
			if dir == "" {
				dir = cfg.StaticKnowledgePath
			}

			app, err := bootstrap.New(cmd.Context(), cfg, logger, bootstrap.Options{Service: serviceName})
			if err != nil {
				logger.Error("bootstrap_failed", "error", err)
				return err
			}
			defer app.Close()

			var added int
			if onlySeed {
				added, err = app.Ingest.SeedIfEmpty(cmd.Context(), dir)
			} else {
				added, err = app.Ingest.IngestDirectory(cmd.Context(), dir)
			}
			if err != nil {
				logger.Error("ingest_failed", "dir", dir, "error", err)
				return err
			}
			total, err := app.Knowledge.Count(cmd.Context())
			if err != nil {
				logger.Error("count_failed", "error", err)
				return err
			}
			logger.Info("ingest_completed", "dir", dir, "added", added, "total_chunks", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "knowledge directory (defaults to STATIC_KNOWLEDGE_PATH)")
	cmd.Flags().BoolVar(&onlySeed, "seed-only", false, "skip ingestion when the store already holds chunks")
	return cmd
}
