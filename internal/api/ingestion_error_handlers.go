package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/accioai/accio/internal/models"
)

// IngestionErrorStore lists and resolves recorded feed failures.
type IngestionErrorStore interface {
	List(ctx context.Context, limit int, unresolvedOnly bool) ([]models.IngestionError, error)
	MarkResolved(ctx context.Context, id string) (bool, error)
}

type IngestionErrorHandler struct {
	repo   IngestionErrorStore
	logger *slog.Logger
}

func NewIngestionErrorHandler(repo IngestionErrorStore, logger *slog.Logger) *IngestionErrorHandler {
	return &IngestionErrorHandler{
		repo:   repo,
		logger: logger,
	}
}

// ListErrors returns ingestion errors with optional filtering
// GET /api/ingestion-errors?limit=100&unresolved_only=true
func (h *IngestionErrorHandler) ListErrors(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := r.URL.Query().Get("unresolved_only") == "true"

	errs, err := h.repo.List(r.Context(), queryLimit(r, 100, 500), unresolvedOnly)
	if err != nil {
		h.logger.Error("failed to list ingestion errors", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list errors")
		return
	}
	if errs == nil {
		errs = []models.IngestionError{}
	}

	writeData(w, h.logger, http.StatusOK, map[string]interface{}{
		"errors": errs,
		"count":  len(errs),
	})
}

// ResolveError marks an error as resolved
// POST /api/ingestion-errors/{id}/resolve
func (h *IngestionErrorHandler) ResolveError(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Error not found")
		return
	}

	found, err := h.repo.MarkResolved(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to resolve error", "id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve error")
		return
	}
	if !found {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Error not found")
		return
	}

	h.logger.Info("resolved ingestion error", "id", id)
	writeData(w, h.logger, http.StatusOK, map[string]string{"id": id})
}
