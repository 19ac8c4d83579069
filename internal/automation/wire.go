package automation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/accioai/accio/internal/config"
	"github.com/accioai/accio/internal/coordination"
	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/enrichment"
	"github.com/accioai/accio/internal/inference"
	"github.com/accioai/accio/internal/ingestion"
	"github.com/accioai/accio/internal/metrics"
)

const runLockKey = "accio:automation:run-lock"

// Service bundles a wired Coordinator with the resources it owns.
type Service struct {
	Coordinator     *Coordinator
	Runs            *database.RunRepository
	IngestionErrors *database.IngestionErrorRepository
	InferenceLogs   *database.InferenceLogRepository

	closers []func()
}

// Close releases the lock backend and flushes pending inference records.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// NewService assembles the Postgres-backed coordinator. Without an LLM API key
// the summarizer produces fallback summaries only. Without a Redis URL the run
// lock is process-local.
func NewService(ctx context.Context, cfg config.Config, db *sql.DB, collector *metrics.AutomationCollector, logger *slog.Logger) (*Service, error) {
	svc := &Service{
		Runs:            database.NewRunRepository(db),
		IngestionErrors: database.NewIngestionErrorRepository(db),
		InferenceLogs:   database.NewInferenceLogRepository(db),
	}

	inferenceLogger := inference.NewLogger(svc.InferenceLogs, logger)
	svc.closers = append(svc.closers, inferenceLogger.Wait)

	var completer enrichment.Completer
	llm, err := enrichment.NewOpenAICompleter(enrichment.ConfigFromEnv(), inferenceLogger, logger)
	if err != nil {
		logger.Warn("LLM completer unavailable, cards will use fallback summaries", "error", err)
	} else {
		completer = llm
	}

	var lock coordination.Locker = coordination.NewLocalLock()
	if cfg.Redis.URL != "" {
		client, err := coordination.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		svc.closers = append(svc.closers, func() { _ = client.Close() })
		lock = coordination.NewRedisLock(client, runLockKey, cfg.Automation.LockTTL)
		logger.Info("using redis run lock", "redis_url", config.RedactURL(cfg.Redis.URL))
	}

	svc.Coordinator = NewCoordinator(Dependencies{
		Sources:    database.NewSourceRepository(db),
		Content:    database.NewRawContentRepository(db),
		Cards:      database.NewCardRepository(db),
		Runs:       svc.Runs,
		Fetcher:    ingestion.NewRSSFetcher(cfg.Feed, svc.IngestionErrors, logger),
		Summarizer: enrichment.NewSummarizer(completer, logger),
		Lock:       lock,
		Metrics:    collector,
	}, ConfigFrom(cfg.Automation), logger)

	return svc, nil
}
