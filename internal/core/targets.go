package core

// ResolveRunTargets determines which assets a run actually targets. An
// explicit selection is authoritative. Otherwise the targets are
// reconstructed as the union of assets reachable from the run's planned step
// keys; step keys unknown to the index contribute nothing. A run with no
// selection and no planned steps targets no assets.
func ResolveRunTargets(selection AssetSelection, stepKeys []StepKey, index StepAssetIndex) map[AssetKey]bool {
	if selection.IsConstrained() {
		return selection.Set()
	}
	targets := make(map[AssetKey]bool)
	for _, stepKey := range stepKeys {
		for asset := range index.AssetsFor(stepKey) {
			targets[asset] = true
		}
	}
	return targets
}
