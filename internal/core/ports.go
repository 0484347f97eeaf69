package core

import "context"

// RunStore is the read side of the storage collaborator. Every method returns
// a point-in-time snapshot; the core never mutates what it reads.
type RunStore interface {
	// GetAssetEntries returns the entries for the given keys. Keys with no
	// entry are omitted, not an error.
	GetAssetEntries(ctx context.Context, keys []AssetKey) ([]AssetEntry, error)

	// ListAssetKeys returns every known asset key in sorted order.
	ListAssetKeys(ctx context.Context) ([]AssetKey, error)

	// GetRunRecords returns runs matching the filter, newest first.
	GetRunRecords(ctx context.Context, filter RunsFilter, cursor RunID, limit int) ([]RunRecord, error)

	// CountRuns returns the number of runs matching the filter.
	CountRuns(ctx context.Context, filter RunsFilter) (int, error)

	// GetExecutionPlanSnapshot returns the plan snapshot for the given id, or
	// a not-found DomainError.
	GetExecutionPlanSnapshot(ctx context.Context, snapshotID string) (*ExecutionPlanSnapshot, error)

	// GetRunStepStats returns step stats for a run, optionally restricted to
	// the given step keys. A run with no stats yields an empty slice.
	GetRunStepStats(ctx context.Context, runID RunID, stepKeys []StepKey) ([]StepStatsSnapshot, error)

	// GetRunTags returns the distinct tag values observed per tag key across
	// all runs, including hidden tags; callers filter.
	GetRunTags(ctx context.Context) (map[string][]string, error)
}

// RunWriter is the ingest side of storage.
type RunWriter interface {
	// UpsertRun inserts or updates a run record and stamps last_run_id on the
	// entries of the assets the run targets.
	UpsertRun(ctx context.Context, run *RunRecord, targetAssets []AssetKey) error

	// SavePlanSnapshot stores an execution plan snapshot.
	SavePlanSnapshot(ctx context.Context, snapshot *ExecutionPlanSnapshot) error

	// UpsertStepStats inserts or updates step stats for a run.
	UpsertStepStats(ctx context.Context, runID RunID, stats []StepStatsSnapshot) error

	// RecordMaterialization records an asset output and updates the asset's
	// entry to point at it.
	RecordMaterialization(ctx context.Context, key AssetKey, mat *Materialization) error
}

// Store combines the read and write sides.
type Store interface {
	RunStore
	RunWriter
}
