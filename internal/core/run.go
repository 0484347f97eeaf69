package core

import "time"

// RunID uniquely identifies a single execution attempt of a job.
type RunID string

// RunStatus represents the overall state of a run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusNotStarted RunStatus = "not_started"
	RunStatusManaged    RunStatus = "managed"
	RunStatusStarting   RunStatus = "starting"
	RunStatusStarted    RunStatus = "started"
	RunStatusCanceling  RunStatus = "canceling"
	RunStatusSuccess    RunStatus = "success"
	RunStatusFailure    RunStatus = "failure"
	RunStatusCanceled   RunStatus = "canceled"
)

// PendingStatuses are the run statuses that can still affect asset liveness:
// the run has been created but has not reached a terminal state.
func PendingStatuses() []RunStatus {
	return []RunStatus{
		RunStatusStarting,
		RunStatusManaged,
		RunStatusNotStarted,
		RunStatusQueued,
		RunStatusStarted,
		RunStatusCanceling,
	}
}

// IsValidRunStatus reports whether s is a known run status.
func IsValidRunStatus(s RunStatus) bool {
	switch s {
	case RunStatusQueued, RunStatusNotStarted, RunStatusManaged, RunStatusStarting,
		RunStatusStarted, RunStatusCanceling, RunStatusSuccess, RunStatusFailure,
		RunStatusCanceled:
		return true
	}
	return false
}

// RunRecord is a point-in-time snapshot of a run as stored.
type RunRecord struct {
	ID             RunID             `json:"run_id"`
	JobName        string            `json:"job_name,omitempty"`
	Status         RunStatus         `json:"status"`
	PlanSnapshotID string            `json:"plan_snapshot_id,omitempty"`
	Selection      AssetSelection    `json:"asset_selection"`
	Tags           map[string]string `json:"tags,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsExecuting reports whether the run has actually begun executing steps.
// Only executing runs can have step stats; queued or unstarted runs must not
// be probed for them.
func (r *RunRecord) IsExecuting() bool {
	return r.Status == RunStatusStarted || r.Status == RunStatusCanceling
}

// IsPending reports whether the run is in a non-terminal status.
func (r *RunRecord) IsPending() bool {
	switch r.Status {
	case RunStatusStarting, RunStatusManaged, RunStatusNotStarted,
		RunStatusQueued, RunStatusStarted, RunStatusCanceling:
		return true
	}
	return false
}

// IsTerminal reports whether the run has finished.
func (r *RunRecord) IsTerminal() bool {
	return r.Status == RunStatusSuccess ||
		r.Status == RunStatusFailure ||
		r.Status == RunStatusCanceled
}

// RunsFilter narrows run record queries.
type RunsFilter struct {
	RunIDs   []RunID
	Statuses []RunStatus
	JobName  string
}

// IsEmpty reports whether the filter matches all runs.
func (f RunsFilter) IsEmpty() bool {
	return len(f.RunIDs) == 0 && len(f.Statuses) == 0 && f.JobName == ""
}

// ExecutionPlanSnapshot captures the step keys a run was planned with.
type ExecutionPlanSnapshot struct {
	SnapshotID        string    `json:"snapshot_id"`
	StepKeysToExecute []StepKey `json:"step_keys_to_execute"`
}

// HiddenTagPrefix marks system-managed run tags that are filtered from
// user-facing tag listings.
const HiddenTagPrefix = "."

// IsHiddenTag reports whether a run tag key is system-managed.
func IsHiddenTag(key string) bool {
	return len(key) > 0 && key[0:1] == HiddenTagPrefix
}
