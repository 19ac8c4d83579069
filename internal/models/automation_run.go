package models

import "time"

// AutomationRun records one execution of the fetch-and-summarize cycle.
type AutomationRun struct {
	ID             string     `json:"id"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ItemsFetched   int        `json:"items_fetched"`
	ItemsProcessed int        `json:"items_processed"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// RunStatus is the lifecycle state of an automation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}
