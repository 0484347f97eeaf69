// Package liveness derives per-asset liveness from stored run, step, and
// materialization records. The derivation is a pure, read-only pass over a
// point-in-time snapshot: nothing here schedules, mutates, or retains state
// between calls.
package liveness

import (
	"context"
	"sort"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/logging"
)

// Resolver answers liveness queries against a run store.
type Resolver struct {
	store  core.RunStore
	logger *logging.Logger
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store core.RunStore, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		store:  store,
		logger: logger.WithComponent("liveness"),
	}
}

// Resolve computes, for each asset in producers, its latest materialization and
// the ids of pending runs that are producing it (in progress) or queued to
// produce it (unstarted). Results preserve the order of producers.
func (r *Resolver) Resolve(ctx context.Context, producers []core.AssetProducer) ([]core.AssetLiveness, error) {
	keys := make([]core.AssetKey, 0, len(producers))
	for _, p := range producers {
		keys = append(keys, p.Key)
	}

	entries, err := r.store.GetAssetEntries(ctx, keys)
	if err != nil {
		return nil, err
	}

	latestByAsset := make(map[core.AssetKey]*core.Materialization, len(entries))
	latestRunIDs := make([]core.RunID, 0, len(entries))
	for _, entry := range entries {
		latestByAsset[entry.Key] = entry.LastMaterialization
		if entry.LastRunID != "" {
			latestRunIDs = append(latestRunIDs, entry.LastRunID)
		}
	}

	var pendingRuns []core.RunRecord
	if len(latestRunIDs) > 0 {
		pendingRuns, err = r.store.GetRunRecords(ctx, core.RunsFilter{
			RunIDs:   latestRunIDs,
			Statuses: core.PendingStatuses(),
		}, "", 0)
		if err != nil {
			return nil, err
		}
	}

	index := core.BuildStepAssetIndex(producers)
	inProgressByAsset, unstartedByAsset, err := r.classifyPendingRuns(ctx, pendingRuns, index)
	if err != nil {
		return nil, err
	}

	results := make([]core.AssetLiveness, 0, len(producers))
	for _, p := range producers {
		results = append(results, core.AssetLiveness{
			Key:                   p.Key,
			LatestMaterialization: latestByAsset[p.Key],
			UnstartedRunIDs:       sortedRunIDs(unstartedByAsset[p.Key]),
			InProgressRunIDs:      sortedRunIDs(inProgressByAsset[p.Key]),
		})
	}
	return results, nil
}

// classifyPendingRuns folds every pending run's per-asset verdict into
// accumulated run-id sets.
func (r *Resolver) classifyPendingRuns(
	ctx context.Context,
	pendingRuns []core.RunRecord,
	index core.StepAssetIndex,
) (inProgressByAsset, unstartedByAsset map[core.AssetKey]map[core.RunID]bool, err error) {
	inProgressByAsset = make(map[core.AssetKey]map[core.RunID]bool)
	unstartedByAsset = make(map[core.AssetKey]map[core.RunID]bool)

	for i := range pendingRuns {
		run := &pendingRuns[i]

		stepKeys, err := r.planStepKeys(ctx, run)
		if err != nil {
			return nil, nil, err
		}

		targets := core.ResolveRunTargets(run.Selection, stepKeys, index)

		// Step stats exist only once a run is executing; fetching them for a
		// queued run would make semantics depend on how the storage layer
		// reports an absent record.
		var stats []core.StepStatsSnapshot
		if run.IsExecuting() {
			stats, err = r.store.GetRunStepStats(ctx, run.ID, stepKeys)
			if err != nil {
				return nil, nil, err
			}
		}

		inProgress, unstarted := core.ClassifyRunAssets(run, targets, stats, index)
		accumulate(inProgressByAsset, inProgress, run.ID)
		accumulate(unstartedByAsset, unstarted, run.ID)

		r.logger.Debug("classified pending run",
			"run_id", run.ID,
			"status", run.Status,
			"targets", len(targets),
			"in_progress", len(inProgress),
			"unstarted", len(unstarted),
		)
	}
	return inProgressByAsset, unstartedByAsset, nil
}

// planStepKeys returns the step keys the run was planned with. A run without
// a plan snapshot reference contributes no step keys; its targets then come
// solely from its explicit selection.
func (r *Resolver) planStepKeys(ctx context.Context, run *core.RunRecord) ([]core.StepKey, error) {
	if run.PlanSnapshotID == "" {
		return nil, nil
	}
	snapshot, err := r.store.GetExecutionPlanSnapshot(ctx, run.PlanSnapshotID)
	if err != nil {
		if core.IsNotFound(err) {
			// A dangling snapshot reference is tolerated as malformed input.
			r.logger.Warn("plan snapshot missing", "run_id", run.ID, "snapshot_id", run.PlanSnapshotID)
			return nil, nil
		}
		return nil, err
	}
	return snapshot.StepKeysToExecute, nil
}

func accumulate(byAsset map[core.AssetKey]map[core.RunID]bool, assets map[core.AssetKey]bool, runID core.RunID) {
	for asset := range assets {
		if byAsset[asset] == nil {
			byAsset[asset] = make(map[core.RunID]bool)
		}
		byAsset[asset][runID] = true
	}
}

func sortedRunIDs(set map[core.RunID]bool) []core.RunID {
	ids := make([]core.RunID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
