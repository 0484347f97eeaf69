package core

// ClassifyRunAssets derives, for a single pending run, which of its target
// assets are actively being produced and which have not started yet.
//
// A run that has not begun executing cannot have step stats, so every target
// is unstarted regardless of the stats argument. For an executing run, each
// target is judged from the stats of its producing steps:
//
//   - any producing step in progress → the asset is in progress
//   - stats exist but none in progress → the steps finished; the asset is in
//     neither set
//   - no stats for any producing step → the asset is unstarted
//
// Stats referencing step keys outside the index contribute to no asset. The
// returned sets are disjoint.
func ClassifyRunAssets(run *RunRecord, targets map[AssetKey]bool, stats []StepStatsSnapshot, index StepAssetIndex) (inProgress, unstarted map[AssetKey]bool) {
	inProgress = make(map[AssetKey]bool)
	unstarted = make(map[AssetKey]bool)

	if !run.IsExecuting() {
		// The run never began execution, all steps are unstarted.
		for asset := range targets {
			unstarted[asset] = true
		}
		return inProgress, unstarted
	}

	// Group stats by the assets their steps produce. An asset may accumulate
	// stats from several producing steps.
	statsByAsset := make(map[AssetKey][]StepStatsSnapshot)
	for _, stat := range stats {
		for asset := range index.AssetsFor(stat.StepKey) {
			statsByAsset[asset] = append(statsByAsset[asset], stat)
		}
	}

	for asset := range targets {
		assetStats := statsByAsset[asset]
		if len(assetStats) == 0 {
			// No stats means the producing step has not started.
			unstarted[asset] = true
			continue
		}
		for _, stat := range assetStats {
			if stat.Status == StepStatusInProgress {
				inProgress[asset] = true
				break
			}
		}
		// Stats present with none in progress: the steps completed, the
		// asset belongs in neither set.
	}

	return inProgress, unstarted
}
