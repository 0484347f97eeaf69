package events

import "github.com/flowmetric/assetpulse/internal/core"

// Event type constants.
const (
	TypeRunUpserted       = "run_upserted"
	TypeStepStatsUpdated  = "step_stats_updated"
	TypeAssetMaterialized = "asset_materialized"
)

// RunUpsertedEvent signals that a run record was created or updated.
type RunUpsertedEvent struct {
	BaseEvent
	Status  core.RunStatus `json:"status"`
	JobName string         `json:"job_name,omitempty"`
}

// NewRunUpsertedEvent creates a run upserted event.
func NewRunUpsertedEvent(run *core.RunRecord) RunUpsertedEvent {
	return RunUpsertedEvent{
		BaseEvent: NewBaseEvent(TypeRunUpserted, string(run.ID)),
		Status:    run.Status,
		JobName:   run.JobName,
	}
}

// StepStatsUpdatedEvent signals that step stats were recorded for a run.
type StepStatsUpdatedEvent struct {
	BaseEvent
	StepKeys []core.StepKey `json:"step_keys"`
}

// NewStepStatsUpdatedEvent creates a step stats event.
func NewStepStatsUpdatedEvent(runID core.RunID, stats []core.StepStatsSnapshot) StepStatsUpdatedEvent {
	keys := make([]core.StepKey, 0, len(stats))
	for _, s := range stats {
		keys = append(keys, s.StepKey)
	}
	return StepStatsUpdatedEvent{
		BaseEvent: NewBaseEvent(TypeStepStatsUpdated, string(runID)),
		StepKeys:  keys,
	}
}

// AssetMaterializedEvent signals that an asset output was recorded.
type AssetMaterializedEvent struct {
	BaseEvent
	AssetKey core.AssetKey `json:"asset_key"`
}

// NewAssetMaterializedEvent creates an asset materialized event.
func NewAssetMaterializedEvent(key core.AssetKey, mat *core.Materialization) AssetMaterializedEvent {
	return AssetMaterializedEvent{
		BaseEvent: NewBaseEvent(TypeAssetMaterialized, string(mat.RunID)),
		AssetKey:  key,
	}
}
