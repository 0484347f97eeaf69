package core

// StepAssetIndex maps each step key to the set of asset keys it produces.
type StepAssetIndex map[StepKey]map[AssetKey]bool

// BuildStepAssetIndex inverts the caller-supplied producer mapping. A step
// key appearing under multiple assets accumulates all of them (union
// semantics); a step may produce more than one asset.
func BuildStepAssetIndex(producers []AssetProducer) StepAssetIndex {
	index := make(StepAssetIndex)
	for _, p := range producers {
		for _, stepKey := range p.StepKeys {
			assets, ok := index[stepKey]
			if !ok {
				assets = make(map[AssetKey]bool)
				index[stepKey] = assets
			}
			assets[p.Key] = true
		}
	}
	return index
}

// AssetsFor returns the set of assets produced by the given step key, or nil
// when the step is unknown to the index.
func (idx StepAssetIndex) AssetsFor(stepKey StepKey) map[AssetKey]bool {
	return idx[stepKey]
}
