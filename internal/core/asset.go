package core

import "time"

// AssetKey uniquely identifies a tracked data asset.
type AssetKey string

// Materialization records a single produced output of an asset.
type Materialization struct {
	RunID       RunID             `json:"run_id"`
	StepKey     StepKey           `json:"step_key,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// AssetEntry is the per-asset latest-state record maintained by storage.
// LastRunID is stamped when a run targeting the asset is created, before any
// output exists, so it can point at a run that has not materialized anything.
type AssetEntry struct {
	Key                 AssetKey         `json:"asset_key"`
	LastMaterialization *Materialization `json:"last_materialization,omitempty"`
	LastRunID           RunID            `json:"last_run_id,omitempty"`
}

// AssetProducer declares which step keys are capable of producing an asset.
// Callers supply these in presentation order; liveness results preserve it.
type AssetProducer struct {
	Key      AssetKey  `json:"asset_key"`
	StepKeys []StepKey `json:"step_keys"`
}

// AssetLiveness is the per-asset resolution result: the freshest output plus
// the runs currently producing (or queued to produce) the asset. For a given
// run id the two slices are disjoint.
type AssetLiveness struct {
	Key                   AssetKey         `json:"asset_key"`
	LatestMaterialization *Materialization `json:"latest_materialization,omitempty"`
	UnstartedRunIDs       []RunID          `json:"unstarted_run_ids"`
	InProgressRunIDs      []RunID          `json:"in_progress_run_ids"`
}
