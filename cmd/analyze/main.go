package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/requirements-guard/internal/bootstrap"
	"github.com/kirillkom/requirements-guard/internal/config"
	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/usecase"
	"github.com/kirillkom/requirements-guard/internal/observability/logging"
	"github.com/kirillkom/requirements-guard/internal/report"
)

const serviceName = "requirements-guard-analyze"

type options struct {
	format             string
	out                string
	includeExplanation bool
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "analyze <file|->",
		Short:        "Classify requirement sentences and rewrite the ambiguous ones",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "txt", "report format: txt or xlsx")
	cmd.Flags().StringVar(&opts.out, "out", "", "report path; '-' writes a txt report to stdout")
	cmd.Flags().BoolVar(&opts.includeExplanation, "explain", false, "include an explanation with each rewrite")
	return cmd
}

func run(input string, opts options) error {
	if opts.format != "txt" && opts.format != "xlsx" {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.out == "-" && opts.format != "txt" {
		return fmt.Errorf("only txt reports can be written to stdout")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		return err
	}
	// Keep stdout free for the report.
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	text, err := readInput(input)
	if err != nil {
		logger.Error("input_read_failed", "input", input, "error", err)
		return err
	}
	sentences := usecase.SplitSentences(text)
	if len(sentences) == 0 {
		err := domain.WrapError(domain.ErrInvalidInput, "analyze", fmt.Errorf("no sentences found in %s", input))
		logger.Error("analysis_rejected", "error", err)
		return err
	}

	// The first interrupt finishes the current sentence and stops; a second
	// one cancels outright.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := &usecase.StopToken{}
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		for i := 0; ; i++ {
			select {
			case <-signals:
				if i == 0 {
					logger.Warn("stop_requested", "hint", "interrupt again to abort")
					stop.Stop()
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Service: serviceName, SeedIfEmpty: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		return err
	}
	defer app.Close()

	batch := app.Runner.Run(ctx, sentences, usecase.BatchOptions{
		IncludeExplanation: opts.includeExplanation,
		Progress: func(index, total int, sentence string) {
			logger.Info("analysis_progress", "item", index+1, "total", total, "sentence", sentence)
		},
	}, stop)

	results := batch.Results()
	summary := domain.Summarize(results)
	logger.Info("analysis_finished",
		"state", batch.State(),
		"processed", len(results),
		"total", len(sentences),
		"ambiguous", summary.Ambiguous,
	)
	if len(results) == 0 {
		logger.Warn("report_skipped", "reason", "no results")
		return nil
	}
	return writeReport(results, opts, time.Now(), logger)
}

func readInput(input string) (string, error) {
	if input == "-" {
		raw, err := io.ReadAll(os.Stdin)
		return string(raw), err
	}
	raw, err := os.ReadFile(input)
	return string(raw), err
}

func writeReport(results []domain.AnalysisResult, opts options, now time.Time, logger *slog.Logger) error {
	if opts.out == "-" {
		return report.WriteText(os.Stdout, results, now)
	}
	path := opts.out
	if strings.TrimSpace(path) == "" {
		path = fmt.Sprintf("requirements_report_%s.%s", now.Format("20060102_150405"), opts.format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if opts.format == "xlsx" {
		err = report.WriteXLSX(f, results, now)
	} else {
		err = report.WriteText(f, results, now)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("report_written", "path", path, "format", opts.format)
	return nil
}
