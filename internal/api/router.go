package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/accioai/accio/internal/auth"
	"github.com/accioai/accio/internal/metrics"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies groups the collaborators of the HTTP API. IngestionErrors,
// InferenceLogs, Health and Metrics are optional.
type Dependencies struct {
	Runner          Runner
	Runs            RunReader
	IngestionErrors IngestionErrorStore
	InferenceLogs   InferenceLogReader
	Health          HealthCheck
	Metrics         *metrics.HTTPCollector
	Auth            auth.Config
	Logger          *slog.Logger
}

// NewRouter builds the API handler.
func NewRouter(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	logger := deps.Logger

	requireAuth := auth.AuthMiddleware(deps.Auth)
	requireTrigger := auth.CronOrBearerMiddleware(deps.Auth)

	automationHandler := NewAutomationHandler(deps.Runner, deps.Runs, logger)
	authHandler := NewAuthHandler(deps.Auth, logger)

	// Authentication routes (public)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Automation routes
	mux.Handle("POST /api/automation/run", requireTrigger(http.HandlerFunc(automationHandler.TriggerRun)))
	mux.Handle("GET /api/automation/runs", requireAuth(http.HandlerFunc(automationHandler.ListRuns)))
	mux.Handle("GET /api/automation/runs/{id}", requireAuth(http.HandlerFunc(automationHandler.GetRun)))

	// Admin routes
	if deps.IngestionErrors != nil {
		errorHandler := NewIngestionErrorHandler(deps.IngestionErrors, logger)
		mux.Handle("GET /api/ingestion-errors", requireAuth(http.HandlerFunc(errorHandler.ListErrors)))
		mux.Handle("POST /api/ingestion-errors/{id}/resolve", requireAuth(http.HandlerFunc(errorHandler.ResolveError)))
	}
	if deps.InferenceLogs != nil {
		inferenceHandler := NewInferenceLogHandler(deps.InferenceLogs, logger)
		mux.Handle("GET /api/inference-logs", requireAuth(http.HandlerFunc(inferenceHandler.ListInferenceLogs)))
	}

	mux.HandleFunc("GET /healthz", healthHandler(deps.Health, logger))
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	var handler http.Handler = corsMiddleware(mux)
	if deps.Metrics != nil {
		handler = deps.Metrics.InstrumentHandler(handler)
	}
	return handler
}

func healthHandler(check HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				writeError(w, logger, http.StatusServiceUnavailable, "UNHEALTHY", "Service unavailable")
				return
			}
		}
		writeData(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+auth.CronSecretHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
