// Package model holds the shared domain types for pdfscribe runs.
package model

import "time"

// RunStatus tracks the lifecycle of a processing run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
	RunStatusStopped  RunStatus = "stopped"
)

// Run records one processing run for the history store.
type Run struct {
	ID          string     `json:"id"`
	InputPath   string     `json:"input_path"`
	OutputPath  string     `json:"output_path"`
	Engine      string     `json:"engine"`
	Status      RunStatus  `json:"status"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the status ends a run.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusFinished, RunStatusFailed, RunStatusStopped:
		return true
	default:
		return false
	}
}
