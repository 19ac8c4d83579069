package automation

import (
	"context"
	"log/slog"

	"github.com/accioai/accio/internal/models"
)

// Categories are visited in this order when building the balanced phase.
var Categories = []string{
	"technology",
	"business",
	"science",
	"ai_ml",
	"design",
	"startups",
	"finance",
	"health",
}

// CategorySources lists the active sources tagged with a category.
type CategorySources interface {
	ListActiveByCategory(ctx context.Context, category string) ([]models.ContentSource, error)
}

// UnprocessedContent lists raw content that has not produced a card yet.
type UnprocessedContent interface {
	ListUnprocessedBySources(ctx context.Context, sourceIDs []string, limit int) ([]models.RawContent, error)
	ListUnprocessedExcluding(ctx context.Context, excludeIDs []string, limit int) ([]models.RawContent, error)
}

// Selection is the working set for a run. Balanced holds up to PerCategory
// rows for each category; Fill holds the oldest remaining rows used to top
// up a short balanced phase.
type Selection struct {
	Balanced []models.RawContent
	Fill     []models.RawContent
}

// Items returns Balanced followed by Fill, capped at limit.
func (s Selection) Items(limit int) []models.RawContent {
	items := make([]models.RawContent, 0, len(s.Balanced)+len(s.Fill))
	items = append(items, s.Balanced...)
	items = append(items, s.Fill...)
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Balancer picks unprocessed rows so no single category dominates a run.
type Balancer struct {
	sources     CategorySources
	content     UnprocessedContent
	perCategory int
	batchSize   int
	logger      *slog.Logger
}

// NewBalancer creates a balancer taking perCategory rows per category and
// filling up to batchSize.
func NewBalancer(sources CategorySources, content UnprocessedContent, perCategory, batchSize int, logger *slog.Logger) *Balancer {
	return &Balancer{
		sources:     sources,
		content:     content,
		perCategory: perCategory,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Select builds the working set. Lookup failures are logged and narrow the
// selection rather than failing it.
func (b *Balancer) Select(ctx context.Context) Selection {
	var sel Selection
	seen := make(map[string]struct{})

	for _, category := range Categories {
		srcs, err := b.sources.ListActiveByCategory(ctx, category)
		if err != nil {
			b.logger.Error("failed to list sources for category", "category", category, "error", err)
			continue
		}
		if len(srcs) == 0 {
			continue
		}

		ids := make([]string, 0, len(srcs))
		for _, s := range srcs {
			ids = append(ids, s.ID)
		}

		rows, err := b.content.ListUnprocessedBySources(ctx, ids, b.perCategory)
		if err != nil {
			b.logger.Error("failed to list unprocessed content for category", "category", category, "error", err)
			continue
		}
		for _, row := range rows {
			if _, dup := seen[row.ID]; dup {
				continue
			}
			seen[row.ID] = struct{}{}
			sel.Balanced = append(sel.Balanced, row)
		}
	}

	missing := b.batchSize - len(sel.Balanced)
	if missing <= 0 {
		return sel
	}

	exclude := make([]string, 0, len(sel.Balanced))
	for _, row := range sel.Balanced {
		exclude = append(exclude, row.ID)
	}

	rows, err := b.content.ListUnprocessedExcluding(ctx, exclude, missing)
	if err != nil {
		b.logger.Error("failed to list backfill content", "error", err)
		return sel
	}
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		sel.Fill = append(sel.Fill, row)
	}

	b.logger.Debug("selected content", "balanced", len(sel.Balanced), "fill", len(sel.Fill))
	return sel
}
