package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/accioai/accio/internal/models"
)

// IngestionErrorRepository is the side-channel log of feed and pipeline
// failures that operators review and resolve.
type IngestionErrorRepository struct {
	db *sql.DB
}

// NewIngestionErrorRepository creates a Postgres-backed ingestion error repository.
func NewIngestionErrorRepository(db *sql.DB) *IngestionErrorRepository {
	return &IngestionErrorRepository{db: db}
}

// Store saves an ingestion error.
func (r *IngestionErrorRepository) Store(ctx context.Context, e models.IngestionError) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ingestion_errors (id, platform, error_type, url, error_msg, metadata, created_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Platform,
		e.ErrorType,
		e.URL,
		e.ErrorMsg,
		nullString(e.Metadata),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store ingestion error: %w", err)
	}
	return nil
}

// List returns the newest errors, optionally only unresolved ones.
func (r *IngestionErrorRepository) List(ctx context.Context, limit int, unresolvedOnly bool) ([]models.IngestionError, error) {
	query := `
		SELECT id, platform, error_type, url, error_msg, metadata, created_at, resolved, resolved_at
		FROM ingestion_errors`
	if unresolvedOnly {
		query += ` WHERE resolved = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion errors: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionError
	for rows.Next() {
		var e models.IngestionError
		var metadata sql.NullString
		var resolvedAt sql.NullTime

		if err := rows.Scan(
			&e.ID,
			&e.Platform,
			&e.ErrorType,
			&e.URL,
			&e.ErrorMsg,
			&metadata,
			&e.CreatedAt,
			&e.Resolved,
			&resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion error: %w", err)
		}

		e.Metadata = metadata.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			e.ResolvedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkResolved flags an error as handled. It reports false when no
// unresolved error has that id.
func (r *IngestionErrorRepository) MarkResolved(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_errors
		SET resolved = TRUE, resolved_at = NOW()
		WHERE id = $1 AND resolved = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve ingestion error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ErrorMetadata encodes a metadata map as JSON text. It returns "" for an
// empty map.
func ErrorMetadata(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}
