package core

import "time"

// StepKey identifies the smallest unit of execution within a run.
type StepKey string

// StepStatus represents the state of a single step within a run.
type StepStatus string

const (
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusSuccess    StepStatus = "success"
	StepStatusFailure    StepStatus = "failure"
	StepStatusSkipped    StepStatus = "skipped"
)

// IsValidStepStatus reports whether s is a known step status.
func IsValidStepStatus(s StepStatus) bool {
	switch s {
	case StepStatusInProgress, StepStatusSuccess, StepStatusFailure, StepStatusSkipped:
		return true
	}
	return false
}

// StepStatsSnapshot is a point-in-time view of one step's execution within a
// run. Stats only exist for steps that have started; an absent snapshot means
// the step has not begun.
type StepStatsSnapshot struct {
	RunID     RunID      `json:"run_id"`
	StepKey   StepKey    `json:"step_key"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Attempts  int        `json:"attempts"`
}
