// Package automation runs the fetch, select, summarize and publish cycle
// that turns feed articles into content cards.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/accioai/accio/internal/config"
	"github.com/accioai/accio/internal/coordination"
	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/enrichment"
	"github.com/accioai/accio/internal/metrics"
	"github.com/accioai/accio/internal/models"
)

var (
	// ErrRunInProgress means another run holds the run lock.
	ErrRunInProgress = errors.New("automation run already in progress")

	// ErrRunFailed wraps every run-fatal error returned by Run.
	ErrRunFailed = errors.New("automation run failed")
)

// SourceStore is the subset of the source repository the coordinator needs.
type SourceStore interface {
	CategorySources
	ListActive(ctx context.Context, sourceType models.SourceType) ([]models.ContentSource, error)
	UpdateLastFetched(ctx context.Context, id string, at time.Time) error
}

// ContentStore is the subset of the raw content repository the coordinator needs.
type ContentStore interface {
	UnprocessedContent
	Insert(ctx context.Context, item models.RawContent) (bool, error)
	DeleteStaleUnprocessed(ctx context.Context, cutoff time.Time) (int64, error)
}

// CardPublisher stores a card and marks its raw row processed atomically.
type CardPublisher interface {
	Publish(ctx context.Context, card models.ContentCard) (string, error)
}

// RunStore persists run status records.
type RunStore interface {
	Create(ctx context.Context) (*models.AutomationRun, error)
	SetFetched(ctx context.Context, id string, fetched int) error
	Complete(ctx context.Context, id string, fetched, processed int) error
	Fail(ctx context.Context, id string, fetched, processed int, message string) error
}

// FeedFetcher downloads a feed. It reports failures by returning no articles.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL, sourceID string) []models.FetchedArticle
}

// Summarizer produces card text. It must not fail.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) enrichment.Summary
}

// Config bounds a run.
type Config struct {
	BatchSize       int
	PerCategory     int
	RetentionWindow time.Duration
}

// ConfigFrom maps the service configuration onto a coordinator Config.
func ConfigFrom(cfg config.AutomationConfig) Config {
	return Config{
		BatchSize:       cfg.BatchSize,
		PerCategory:     cfg.PerCategory,
		RetentionWindow: cfg.RetentionWindow,
	}
}

// Dependencies groups the collaborators of a Coordinator. Lock and Metrics
// are optional.
type Dependencies struct {
	Sources    SourceStore
	Content    ContentStore
	Cards      CardPublisher
	Runs       RunStore
	Fetcher    FeedFetcher
	Summarizer Summarizer
	Lock       coordination.Locker
	Metrics    *metrics.AutomationCollector
}

// ItemOutcome is the result of processing one raw content row.
type ItemOutcome struct {
	RawContentID string
	CardID       string
	Fallback     bool
	Skipped      bool
	Err          error
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID          string
	NoSources      bool
	ItemsFetched   int
	ItemsProcessed int
	ItemsFailed    int
	FallbackCount  int
	StaleDeleted   int64
	Outcomes       []ItemOutcome
}

// Coordinator executes automation runs. It is safe to call Run from the
// scheduler and HTTP handlers at once; the lock lets only one through.
type Coordinator struct {
	deps     Dependencies
	balancer *Balancer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator wires a coordinator. Without a Lock an in-process lock is used.
func NewCoordinator(deps Dependencies, cfg Config, logger *slog.Logger) *Coordinator {
	if deps.Lock == nil {
		deps.Lock = coordination.NewLocalLock()
	}
	return &Coordinator{
		deps:     deps,
		balancer: NewBalancer(deps.Sources, deps.Content, cfg.PerCategory, cfg.BatchSize, logger),
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one cycle. It returns ErrRunInProgress when another run holds
// the lock and an error wrapping ErrRunFailed for run-fatal failures.
func (c *Coordinator) Run(ctx context.Context) (*RunResult, error) {
	unlock, err := c.deps.Lock.TryLock(ctx)
	if errors.Is(err, coordination.ErrLockNotAcquired) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			c.logger.Warn("failed to release run lock", "error", err)
		}
	}()

	start := time.Now()

	run, err := c.deps.Runs.Create(ctx)
	if err != nil {
		c.deps.Metrics.RunFinished(string(models.RunStatusFailed), 0, 0, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	logger := c.logger.With("run_id", run.ID)
	logger.Info("automation run started")

	result := &RunResult{RunID: run.ID}
	if err := c.execute(ctx, run.ID, result, logger); err != nil {
		logger.Error("automation run failed", "error", err, "duration", time.Since(start))
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ferr := c.deps.Runs.Fail(failCtx, run.ID, result.ItemsFetched, result.ItemsProcessed, err.Error()); ferr != nil {
			logger.Error("failed to mark run failed", "error", ferr)
		}
		c.deps.Metrics.RunFinished(string(models.RunStatusFailed), result.ItemsFetched, result.ItemsProcessed, time.Since(start))
		return result, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	c.deps.Metrics.RunFinished(string(models.RunStatusCompleted), result.ItemsFetched, result.ItemsProcessed, time.Since(start))
	logger.Info("automation run completed",
		"items_fetched", result.ItemsFetched,
		"items_processed", result.ItemsProcessed,
		"items_failed", result.ItemsFailed,
		"fallback_summaries", result.FallbackCount,
		"stale_deleted", result.StaleDeleted,
		"duration", time.Since(start),
	)
	return result, nil
}

func (c *Coordinator) execute(ctx context.Context, runID string, result *RunResult, logger *slog.Logger) error {
	sources, err := c.deps.Sources.ListActive(ctx, models.SourceTypeRSS)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	if len(sources) == 0 {
		logger.Info("no active sources to process")
		result.NoSources = true
		if err := c.deps.Runs.Complete(ctx, runID, 0, 0); err != nil {
			return fmt.Errorf("failed to complete run: %w", err)
		}
		return nil
	}

	fetched, err := c.ingest(ctx, sources, logger)
	result.ItemsFetched = fetched
	if err != nil {
		return err
	}
	if err := c.deps.Runs.SetFetched(ctx, runID, fetched); err != nil {
		return fmt.Errorf("failed to record fetched count: %w", err)
	}

	items := c.balancer.Select(ctx).Items(c.cfg.BatchSize)
	logger.Info("processing content", "items", len(items))

	result.Outcomes = make([]ItemOutcome, 0, len(items))
	var interrupted error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			interrupted = fmt.Errorf("run interrupted: %w", err)
			break
		}
		result.Outcomes = append(result.Outcomes, c.processItem(ctx, item))
	}

	for _, out := range result.Outcomes {
		switch {
		case out.Err != nil:
			result.ItemsFailed++
			c.deps.Metrics.ItemFailed()
			logger.Error("failed to process item",
				"item_id", out.RawContentID,
				"error_type", models.ErrorTypeEnrichmentFailed,
				"error", out.Err,
			)
		case out.Skipped:
			logger.Debug("item already processed", "item_id", out.RawContentID)
		default:
			result.ItemsProcessed++
			if out.Fallback {
				result.FallbackCount++
			}
		}
	}
	if interrupted != nil {
		return interrupted
	}

	cutoff := c.now().Add(-c.cfg.RetentionWindow)
	deleted, err := c.deps.Content.DeleteStaleUnprocessed(ctx, cutoff)
	if err != nil {
		logger.Error("retention sweep failed", "cutoff", cutoff, "error", err)
	} else {
		result.StaleDeleted = deleted
		if deleted > 0 {
			logger.Info("deleted stale unprocessed content", "count", deleted, "cutoff", cutoff)
		}
	}

	if err := c.deps.Runs.Complete(ctx, runID, result.ItemsFetched, result.ItemsProcessed); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// ingest fetches every source and stores new articles. It returns the number
// of rows actually inserted.
func (c *Coordinator) ingest(ctx context.Context, sources []models.ContentSource, logger *slog.Logger) (int, error) {
	fetched := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return fetched, fmt.Errorf("run interrupted: %w", err)
		}

		articles := c.deps.Fetcher.Fetch(ctx, src.SourceURL, src.ID)
		inserted := 0
		for _, article := range articles {
			ok, err := c.deps.Content.Insert(ctx, article.ToRawContent(src.ID))
			switch {
			case err != nil:
				logger.Error("failed to store article",
					"source_id", src.ID,
					"url", article.URL,
					"error_type", models.ErrorTypeInsertFailed,
					"error", err,
				)
			case !ok:
				logger.Debug("duplicate article skipped", "source_id", src.ID, "url", article.URL)
			default:
				inserted++
			}
		}
		fetched += inserted

		if err := c.deps.Sources.UpdateLastFetched(ctx, src.ID, c.now()); err != nil {
			logger.Warn("failed to update last fetched time", "source_id", src.ID, "error", err)
		}
		logger.Debug("source processed", "source_id", src.ID, "articles", len(articles), "inserted", inserted)
	}
	return fetched, nil
}

func (c *Coordinator) processItem(ctx context.Context, item models.RawContent) (out ItemOutcome) {
	out.RawContentID = item.ID
	defer func() {
		if r := recover(); r != nil {
			out.CardID = ""
			out.Err = fmt.Errorf("panic while processing item: %v", r)
		}
	}()

	summary := c.deps.Summarizer.Summarize(ctx, item.Title, item.Content)
	out.Fallback = summary.Source == enrichment.SourceFallback
	c.deps.Metrics.SummaryProduced(string(summary.Source))

	cardID, err := c.deps.Cards.Publish(ctx, BuildCard(item, summary))
	if errors.Is(err, database.ErrAlreadyProcessed) {
		out.Skipped = true
		return out
	}
	if err != nil {
		out.Err = err
		return out
	}
	out.CardID = cardID
	return out
}

// BuildCard assembles the card for item from its summary.
func BuildCard(item models.RawContent, summary enrichment.Summary) models.ContentCard {
	category := enrichment.ExtractCategory(item.SourceCategory)
	difficulty := enrichment.DetermineDifficulty(item.Content)

	return models.ContentCard{
		RawContentID:         item.ID,
		Title:                item.Title,
		Content:              enrichment.FormatCardContent(summary),
		Category:             category,
		DifficultyLevel:      models.DifficultyLevel(difficulty),
		EstimatedTimeMinutes: enrichment.EstimateReadingTime(item.Content),
		Tags:                 []string{category, difficulty},
		ImageURL:             item.ImageURL,
		SourceURL:            item.URL,
	}
}
