package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/requirements-guard/internal/adapters/mcp"
	"github.com/kirillkom/requirements-guard/internal/bootstrap"
	"github.com/kirillkom/requirements-guard/internal/config"
	"github.com/kirillkom/requirements-guard/internal/observability/logging"
)

const serviceName = "requirements-guard-mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// Stdout carries the MCP protocol, so logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Service:      serviceName,
		ConnectQueue: true,
		SeedIfEmpty:  true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("mcp_serving", "transport", "stdio")
	if err := mcpadapter.New(app.Analysis, app.Search, logger).ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
