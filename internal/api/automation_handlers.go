package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/accioai/accio/internal/auth"
	"github.com/accioai/accio/internal/automation"
	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/models"
)

// Runner executes an automation run.
type Runner interface {
	Run(ctx context.Context) (*automation.RunResult, error)
}

// RunReader reads run status records.
type RunReader interface {
	Get(ctx context.Context, id string) (*models.AutomationRun, error)
	List(ctx context.Context, limit int) ([]models.AutomationRun, error)
}

// AutomationHandler serves the run trigger and run status endpoints.
type AutomationHandler struct {
	runner Runner
	runs   RunReader
	logger *slog.Logger
}

// NewAutomationHandler creates an automation handler.
func NewAutomationHandler(runner Runner, runs RunReader, logger *slog.Logger) *AutomationHandler {
	return &AutomationHandler{runner: runner, runs: runs, logger: logger}
}

// TriggerRunResponse is the data returned by a successful trigger.
type TriggerRunResponse struct {
	RunID          string `json:"runId"`
	ItemsFetched   *int   `json:"itemsFetched,omitempty"`
	ItemsProcessed *int   `json:"itemsProcessed,omitempty"`
	Message        string `json:"message,omitempty"`
}

// TriggerRun handles POST /api/automation/run
func (h *AutomationHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.GetUserIDFromContext(r.Context())
	logger := h.logger.With("request_id", uuid.New().String(), "caller", caller)

	start := time.Now()
	result, err := h.runner.Run(r.Context())
	switch {
	case errors.Is(err, automation.ErrRunInProgress):
		logger.Info("automation trigger rejected, run in progress")
		writeError(w, logger, http.StatusConflict, "RUN_IN_PROGRESS", "An automation run is already in progress")
		return
	case err != nil:
		logger.Error("automation trigger failed", "error", err, "duration", time.Since(start))
		writeError(w, logger, http.StatusInternalServerError, "AUTOMATION_ERROR", "Automation run failed")
		return
	}

	logger.Info("automation trigger completed", "run_id", result.RunID, "duration", time.Since(start))

	resp := TriggerRunResponse{RunID: result.RunID}
	if result.NoSources {
		resp.Message = "No active sources to process"
	} else {
		resp.ItemsFetched = &result.ItemsFetched
		resp.ItemsProcessed = &result.ItemsProcessed
	}
	writeData(w, logger, http.StatusOK, resp)
}

// ListRuns handles GET /api/automation/runs?limit=20
func (h *AutomationHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(r.Context(), queryLimit(r, 20, 100))
	if err != nil {
		h.logger.Error("failed to list automation runs", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.AutomationRun{}
	}
	writeData(w, h.logger, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/automation/runs/{id}
func (h *AutomationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Run not found")
		return
	}

	run, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, database.ErrRunNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get automation run", "run_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get run")
		return
	}
	writeData(w, h.logger, http.StatusOK, run)
}
