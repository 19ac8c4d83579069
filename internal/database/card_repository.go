package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/accioai/accio/internal/models"
)

// ErrAlreadyProcessed is returned by Publish when the source row was already
// turned into a card, or no longer exists.
var ErrAlreadyProcessed = errors.New("raw content already processed")

// CardRepository publishes content cards.
type CardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a Postgres-backed card repository.
func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Publish inserts card and marks its raw content row processed in a single
// transaction. The row flip is conditional on processed = false so that a
// row can produce at most one card.
func (r *CardRepository) Publish(ctx context.Context, card models.ContentCard) (string, error) {
	if card.RawContentID == "" {
		return "", fmt.Errorf("card has no raw content id")
	}
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	if card.Tags == nil {
		card.Tags = []string{}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE raw_content SET processed = TRUE WHERE id = $1 AND processed = FALSE`,
		card.RawContentID)
	if err != nil {
		return "", fmt.Errorf("failed to mark raw content processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return "", ErrAlreadyProcessed
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO content_cards (
			id, raw_content_id, title, content, category, difficulty_level,
			estimated_time_minutes, tags, image_url, source_url, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		card.ID,
		card.RawContentID,
		card.Title,
		card.Content,
		card.Category,
		string(card.DifficultyLevel),
		card.EstimatedTimeMinutes,
		pq.Array(card.Tags),
		nullString(card.ImageURL),
		card.SourceURL,
		card.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrAlreadyProcessed
		}
		return "", fmt.Errorf("failed to insert content card: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit publish transaction: %w", err)
	}
	return card.ID, nil
}
