package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/accioai/accio/internal/enrichment"
	"github.com/accioai/accio/internal/models"
)

// InferenceLogReader returns recent LLM call records.
type InferenceLogReader interface {
	Recent(ctx context.Context, operation string, limit int) ([]models.InferenceLog, error)
}

// InferenceLogHandler exposes the inference call log
type InferenceLogHandler struct {
	repo   InferenceLogReader
	logger *slog.Logger
}

// NewInferenceLogHandler creates a new handler
func NewInferenceLogHandler(repo InferenceLogReader, logger *slog.Logger) *InferenceLogHandler {
	return &InferenceLogHandler{
		repo:   repo,
		logger: logger,
	}
}

// ListInferenceLogs handles GET /api/inference-logs?operation=card_summary&limit=100
func (h *InferenceLogHandler) ListInferenceLogs(w http.ResponseWriter, r *http.Request) {
	operation := r.URL.Query().Get("operation")
	if operation == "" {
		operation = enrichment.SummaryOperation
	}

	logs, err := h.repo.Recent(r.Context(), operation, queryLimit(r, 100, 500))
	if err != nil {
		h.logger.Error("failed to list inference logs", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list inference logs")
		return
	}
	if logs == nil {
		logs = []models.InferenceLog{}
	}

	writeData(w, h.logger, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
