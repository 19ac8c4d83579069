package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/accioai/accio/internal/models"
)

// RawContentRepository stores fetched articles until they are summarized.
type RawContentRepository struct {
	db *sql.DB
}

// NewRawContentRepository creates a Postgres-backed raw content repository.
func NewRawContentRepository(db *sql.DB) *RawContentRepository {
	return &RawContentRepository{db: db}
}

// Insert stores an unprocessed row. A row that collides on (source_id, url)
// is reported as not inserted without an error.
func (r *RawContentRepository) Insert(ctx context.Context, item models.RawContent) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO raw_content (id, source_id, title, content, url, image_url, published_at, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
		ON CONFLICT (source_id, url) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.SourceID,
		item.Title,
		item.Content,
		item.URL,
		nullString(item.ImageURL),
		item.PublishedAt,
		item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert raw content %s: %w", item.URL, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

const unprocessedSelect = `
	SELECT r.id, r.source_id, r.title, r.content, r.url, COALESCE(r.image_url, ''),
	       r.published_at, r.processed, r.created_at, s.category
	FROM raw_content r
	JOIN content_sources s ON s.id = r.source_id
	WHERE r.processed = FALSE`

// ListUnprocessedBySources returns up to limit unprocessed rows owned by the
// given sources, oldest first.
func (r *RawContentRepository) ListUnprocessedBySources(ctx context.Context, sourceIDs []string, limit int) ([]models.RawContent, error) {
	if len(sourceIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	query := unprocessedSelect + `
		AND r.source_id = ANY($1::uuid[])
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(sourceIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed content by source: %w", err)
	}
	defer rows.Close()

	return scanRawContent(rows)
}

// ListUnprocessedExcluding returns up to limit unprocessed rows whose ids are
// not in excludeIDs, oldest first.
func (r *RawContentRepository) ListUnprocessedExcluding(ctx context.Context, excludeIDs []string, limit int) ([]models.RawContent, error) {
	if limit <= 0 {
		return nil, nil
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	query := unprocessedSelect + `
		AND NOT (r.id = ANY($1::uuid[]))
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(excludeIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed content: %w", err)
	}
	defer rows.Close()

	return scanRawContent(rows)
}

// DeleteStaleUnprocessed removes unprocessed rows created before cutoff.
// Processed rows are kept regardless of age.
func (r *RawContentRepository) DeleteStaleUnprocessed(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM raw_content WHERE processed = FALSE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale raw content: %w", err)
	}
	return res.RowsAffected()
}

func scanRawContent(rows *sql.Rows) ([]models.RawContent, error) {
	var items []models.RawContent
	for rows.Next() {
		var item models.RawContent
		if err := rows.Scan(
			&item.ID,
			&item.SourceID,
			&item.Title,
			&item.Content,
			&item.URL,
			&item.ImageURL,
			&item.PublishedAt,
			&item.Processed,
			&item.CreatedAt,
			&item.SourceCategory,
		); err != nil {
			return nil, fmt.Errorf("failed to scan raw content: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
