package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/accioai/accio/internal/models"
)

var (
	// ErrRunNotFound is returned when a run id does not exist.
	ErrRunNotFound = errors.New("automation run not found")
	// ErrRunNotRunning is returned when an update targets a terminal run.
	ErrRunNotRunning = errors.New("automation run is not running")
)

// RunRepository persists automation run records. Every mutation is guarded
// by status = 'running' so terminal rows never change.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a Postgres-backed run repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new running row with zero counters.
func (r *RunRepository) Create(ctx context.Context) (*models.AutomationRun, error) {
	run := &models.AutomationRun{
		ID:        uuid.New().String(),
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_runs (id, status, started_at, items_fetched, items_processed)
		VALUES ($1, $2, $3, 0, 0)`,
		run.ID, string(run.Status), run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation run: %w", err)
	}
	return run, nil
}

// SetFetched records the number of newly inserted raw rows.
func (r *RunRepository) SetFetched(ctx context.Context, id string, fetched int) error {
	return r.update(ctx, `
		UPDATE automation_runs SET items_fetched = $1
		WHERE id = $2 AND status = 'running'`, fetched, id)
}

// Complete moves a running row to completed with final counters.
func (r *RunRepository) Complete(ctx context.Context, id string, fetched, processed int) error {
	return r.update(ctx, `
		UPDATE automation_runs
		SET status = 'completed', completed_at = $1, items_fetched = $2, items_processed = $3
		WHERE id = $4 AND status = 'running'`, time.Now().UTC(), fetched, processed, id)
}

// Fail moves a running row to failed with an error message and the counters
// reached before the failure.
func (r *RunRepository) Fail(ctx context.Context, id string, fetched, processed int, message string) error {
	return r.update(ctx, `
		UPDATE automation_runs
		SET status = 'failed', completed_at = $1, items_fetched = $2, items_processed = $3, error_message = $4
		WHERE id = $5 AND status = 'running'`, time.Now().UTC(), fetched, processed, message, id)
}

func (r *RunRepository) update(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update automation run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotRunning
	}
	return nil
}

const runColumns = `id, status, started_at, completed_at, items_fetched, items_processed, error_message`

// Get returns a run by id.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.AutomationRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM automation_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get automation run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.AutomationRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM automation_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AutomationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.AutomationRun, error) {
	var run models.AutomationRun
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	if err := row.Scan(
		&run.ID,
		&status,
		&run.StartedAt,
		&completedAt,
		&run.ItemsFetched,
		&run.ItemsProcessed,
		&errMsg,
	); err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}
