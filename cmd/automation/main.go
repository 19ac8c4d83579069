// Command automation performs a single automation run and exits. It is meant
// for external cron triggers that prefer a process over an HTTP call.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/accioai/accio/internal/automation"
	"github.com/accioai/accio/internal/config"
	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/logging"
	"github.com/accioai/accio/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	if err := runOnce(cfg, logger); err != nil {
		if errors.Is(err, automation.ErrRunInProgress) {
			logger.Info("another run is in progress, nothing to do")
			return
		}
		logger.Error("automation run failed", "error", err)
		os.Exit(1)
	}
}

func runOnce(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		return err
	}
	automationMetrics, err := metrics.NewAutomationCollector(collector.Registry())
	if err != nil {
		return err
	}

	svc, err := automation.NewService(ctx, cfg, db, automationMetrics, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Coordinator.Run(ctx)
	if err != nil {
		return err
	}

	if result.NoSources {
		logger.Info("no active sources to process", "run_id", result.RunID)
		return nil
	}
	logger.Info("automation run complete",
		"run_id", result.RunID,
		"items_fetched", result.ItemsFetched,
		"items_processed", result.ItemsProcessed,
		"items_failed", result.ItemsFailed,
		"fallback_summaries", result.FallbackCount,
		"stale_deleted", result.StaleDeleted,
	)
	return nil
}
