// Package pipeline is the test-pipeline harness: a platform REST client,
// suite runner (seed, run, verify, cleanup), extraction and matching
// helpers, and a run-history store.
package pipeline

import (
	"time"
)

// Status is an execution's lifecycle state as reported by the platform.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status will never change again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Pipeline is a platform pipeline as exchanged with the REST API.
type Pipeline struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Definition  map[string]any `json:"definition"`
	Variables   map[string]any `json:"variables,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// Execution is one run of a pipeline.
type Execution struct {
	ID         string         `json:"id"`
	PipelineID string         `json:"pipeline_id"`
	Status     Status         `json:"status"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at,omitempty"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

// PhaseTimings breaks a case's duration down by harness phase.
type PhaseTimings struct {
	Seed    time.Duration `json:"seed"`
	Run     time.Duration `json:"run"`
	Verify  time.Duration `json:"verify"`
	Cleanup time.Duration `json:"cleanup"`
}

// CaseResult is the outcome of one case. A verification failure lands in
// Error; the suite keeps going either way.
type CaseResult struct {
	Name        string         `json:"name"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Seeded      []string       `json:"seeded,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Status      Status         `json:"status,omitempty"`
	Extracted   map[string]any `json:"extracted,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Phases      PhaseTimings   `json:"phases"`
}

// SuiteResult aggregates the case results of one suite run.
type SuiteResult struct {
	Suite     string        `json:"suite"`
	Cases     []*CaseResult `json:"cases"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Success reports whether every case passed.
func (r *SuiteResult) Success() bool {
	return r.Failed == 0
}
