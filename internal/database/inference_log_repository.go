package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/accioai/accio/internal/models"
)

// InferenceLogRepository stores one row per LLM call.
type InferenceLogRepository struct {
	db *sql.DB
}

// NewInferenceLogRepository creates a new repository
func NewInferenceLogRepository(db *sql.DB) *InferenceLogRepository {
	return &InferenceLogRepository{db: db}
}

// Create records an inference call.
func (r *InferenceLogRepository) Create(ctx context.Context, log models.InferenceLog) error {
	query := `
		INSERT INTO inference_logs (
			provider, model, operation, tokens_used, input_tokens, output_tokens,
			latency_ms, status, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		log.Provider,
		log.Model,
		log.Operation,
		log.TokensUsed,
		log.InputTokens,
		log.OutputTokens,
		log.LatencyMs,
		log.Status,
		log.ErrorMessage,
		nullString(log.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert inference log: %w", err)
	}
	return nil
}

// Recent returns the latest calls for an operation, newest first.
func (r *InferenceLogRepository) Recent(ctx context.Context, operation string, limit int) ([]models.InferenceLog, error) {
	query := `
		SELECT id, provider, model, operation, tokens_used, input_tokens, output_tokens,
		       latency_ms, status, error_message, metadata, created_at
		FROM inference_logs
		WHERE operation = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inference logs: %w", err)
	}
	defer rows.Close()

	var logs []models.InferenceLog
	for rows.Next() {
		var l models.InferenceLog
		var metadata sql.NullString
		if err := rows.Scan(
			&l.ID,
			&l.Provider,
			&l.Model,
			&l.Operation,
			&l.TokensUsed,
			&l.InputTokens,
			&l.OutputTokens,
			&l.LatencyMs,
			&l.Status,
			&l.ErrorMessage,
			&metadata,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan inference log: %w", err)
		}
		l.Metadata = metadata.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
