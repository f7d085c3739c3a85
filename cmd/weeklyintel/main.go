package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"WeeklyIntel/internal/app"
	"WeeklyIntel/internal/config"
	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/logging"
	"WeeklyIntel/internal/metrics"
)

func main() {
	once := flag.Bool("once", false, "run a single workflow, print the report and exit")
	configPath := flag.String("config", "", "path to YAML config (overrides WEEKLY_INTEL_CONFIG)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()
	if *configPath != "" {
		_ = os.Setenv("WEEKLY_INTEL_CONFIG", *configPath)
	}

	os.Exit(run(*once))
}

func run(once bool) int {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		return 1
	}
	defer application.Close()

	if once {
		state, err := application.RunOnce(ctx)
		if state.ReportText != "" {
			fmt.Println(state.ReportText)
		}
		switch {
		case errors.Is(err, domain.ErrNoArticles):
			logger.Warn("no articles collected", "run_id", state.ID, "reason", state.FailureReason)
			return 2
		case err != nil:
			logger.Error("run failed", "run_id", state.ID, "error", err)
			return 1
		}
		logger.Info("run complete", "run_id", state.ID, "report_id", state.ReportID())
		return 0
	}

	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return 1
	}
	logger.Info("application stopped")
	return 0
}
