package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/accioai/accio/internal/models"
)

// SourceRepository reads and updates configured content sources.
type SourceRepository struct {
	db *sql.DB
}

// NewSourceRepository creates a Postgres-backed source repository.
func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

const sourceColumns = `id, name, source_type, source_url, category, is_active, fetch_frequency_hours, last_fetched_at`

// ListActive returns active sources of the given type ordered by name.
func (r *SourceRepository) ListActive(ctx context.Context, sourceType models.SourceType) ([]models.ContentSource, error) {
	query := `SELECT ` + sourceColumns + `
		FROM content_sources
		WHERE is_active = TRUE AND source_type = $1
		ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, string(sourceType))
	if err != nil {
		return nil, fmt.Errorf("failed to query active sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListActiveByCategory returns active sources of any type tagged with category.
func (r *SourceRepository) ListActiveByCategory(ctx context.Context, category string) ([]models.ContentSource, error) {
	query := `SELECT ` + sourceColumns + `
		FROM content_sources
		WHERE is_active = TRUE AND category = $1
		ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources for category %s: %w", category, err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListAll returns every source, active or not, grouped by category.
func (r *SourceRepository) ListAll(ctx context.Context) ([]models.ContentSource, error) {
	query := `SELECT ` + sourceColumns + `
		FROM content_sources
		ORDER BY category ASC, name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// UpdateLastFetched stamps the source's last_fetched_at.
func (r *SourceRepository) UpdateLastFetched(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE content_sources SET last_fetched_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last_fetched_at for %s: %w", id, err)
	}
	return nil
}

// Upsert inserts a source or updates the existing row with the same URL and
// returns the stored id.
func (r *SourceRepository) Upsert(ctx context.Context, src models.ContentSource) (string, error) {
	if !src.SourceType.Valid() {
		return "", fmt.Errorf("invalid source type %q", src.SourceType)
	}
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	if src.FetchFrequencyHours <= 0 {
		src.FetchFrequencyHours = 6
	}

	query := `
		INSERT INTO content_sources (id, name, source_type, source_url, category, is_active, fetch_frequency_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_url) DO UPDATE SET
			name = EXCLUDED.name,
			source_type = EXCLUDED.source_type,
			category = EXCLUDED.category,
			is_active = EXCLUDED.is_active,
			fetch_frequency_hours = EXCLUDED.fetch_frequency_hours
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		src.ID,
		src.Name,
		string(src.SourceType),
		src.SourceURL,
		src.Category,
		src.IsActive,
		src.FetchFrequencyHours,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert source %s: %w", src.SourceURL, err)
	}
	return id, nil
}

func scanSources(rows *sql.Rows) ([]models.ContentSource, error) {
	var sources []models.ContentSource
	for rows.Next() {
		var s models.ContentSource
		var sourceType string
		var lastFetched sql.NullTime

		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&sourceType,
			&s.SourceURL,
			&s.Category,
			&s.IsActive,
			&s.FetchFrequencyHours,
			&lastFetched,
		); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}

		s.SourceType = models.SourceType(sourceType)
		if lastFetched.Valid {
			t := lastFetched.Time
			s.LastFetchedAt = &t
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
