package inference

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/accioai/accio/internal/models"
)

// Store persists inference log rows.
type Store interface {
	Create(ctx context.Context, log models.InferenceLog) error
}

// Logger records LLM calls without blocking the caller.
type Logger struct {
	store  Store
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewLogger creates a new inference logger
func NewLogger(store Store, logger *slog.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// Call describes one completed LLM request.
type Call struct {
	Provider     string
	Model        string
	Operation    string
	PromptTokens int
	OutputTokens int
	Latency      time.Duration
	Err          error
	Metadata     map[string]interface{}
}

// Record writes c in the background. A nil Logger drops the call.
func (l *Logger) Record(c Call) {
	if l == nil || l.store == nil {
		return
	}

	row := models.InferenceLog{
		Provider:   c.Provider,
		Model:      c.Model,
		Operation:  c.Operation,
		TokensUsed: c.PromptTokens + c.OutputTokens,
		Status:     "success",
	}
	if c.PromptTokens > 0 || c.OutputTokens > 0 {
		in, out := c.PromptTokens, c.OutputTokens
		row.InputTokens = &in
		row.OutputTokens = &out
	}
	latency := int(c.Latency.Milliseconds())
	row.LatencyMs = &latency
	if c.Err != nil {
		row.Status = "error"
		msg := c.Err.Error()
		row.ErrorMessage = &msg
	}
	if len(c.Metadata) > 0 {
		if b, err := json.Marshal(c.Metadata); err == nil {
			row.Metadata = string(b)
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.store.Create(ctx, row); err != nil {
			l.logger.Error("failed to log inference call", "error", err, "operation", row.Operation)
		}
	}()
}

// Wait blocks until pending writes finish. Called on shutdown.
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}
