package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/accioai/accio/internal/api"
	"github.com/accioai/accio/internal/auth"
	"github.com/accioai/accio/internal/automation"
	"github.com/accioai/accio/internal/config"
	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/logging"
	"github.com/accioai/accio/internal/metrics"
	"github.com/accioai/accio/internal/scheduler"
	"github.com/accioai/accio/internal/server"
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

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting accio", "port", cfg.Server.Port)

	logger.Info("connecting to database", "url", config.RedactURL(cfg.Database.URL))
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

	authCfg := auth.LoadConfigFromEnv()
	if !authCfg.LoginEnabled() {
		logger.Warn("admin login disabled, set ADMIN_JWT_SECRET and ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}
	if authCfg.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, run trigger accepts bearer tokens only")
	}

	handler := api.NewRouter(api.Dependencies{
		Runner:          svc.Coordinator,
		Runs:            svc.Runs,
		IngestionErrors: svc.IngestionErrors,
		InferenceLogs:   svc.InferenceLogs,
		Health: func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		},
		Metrics: collector,
		Auth:    authCfg,
		Logger:  logger,
	})

	if cfg.Scheduler.Schedule == "" {
		logger.Info("automation scheduler disabled")
	} else {
		sched, err := scheduler.NewAutomationScheduler(cfg.Scheduler.Schedule, svc.Coordinator, logger)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := server.New(cfg.Server, logger, handler)
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return err
	}

	return srv.Run(ctx, ln)
}
