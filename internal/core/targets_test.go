package core

import "testing"

func TestResolveRunTargets_ExplicitSelectionWins(t *testing.T) {
	index := BuildStepAssetIndex([]AssetProducer{
		{Key: "orders", StepKeys: []StepKey{"load_orders"}},
		{Key: "users", StepKeys: []StepKey{"load_users"}},
	})

	// Selection is authoritative even though the plan covers more steps.
	targets := ResolveRunTargets(SelectionOf("orders"), []StepKey{"load_orders", "load_users"}, index)
	if len(targets) != 1 || !targets["orders"] {
		t.Fatalf("targets = %#v, want {orders}", targets)
	}
}

func TestResolveRunTargets_UnconstrainedUnionsSteps(t *testing.T) {
	index := BuildStepAssetIndex([]AssetProducer{
		{Key: "orders", StepKeys: []StepKey{"load_orders"}},
		{Key: "users", StepKeys: []StepKey{"load_users"}},
		{Key: "sessions", StepKeys: []StepKey{"load_sessions"}},
	})

	targets := ResolveRunTargets(UnconstrainedSelection(), []StepKey{"load_orders", "load_users"}, index)
	if len(targets) != 2 || !targets["orders"] || !targets["users"] {
		t.Fatalf("targets = %#v, want {orders users}", targets)
	}
}

func TestResolveRunTargets_UnknownStepKeysIgnored(t *testing.T) {
	index := BuildStepAssetIndex([]AssetProducer{
		{Key: "orders", StepKeys: []StepKey{"load_orders"}},
	})

	targets := ResolveRunTargets(UnconstrainedSelection(), []StepKey{"load_orders", "no_such_step"}, index)
	if len(targets) != 1 || !targets["orders"] {
		t.Fatalf("targets = %#v, want {orders}", targets)
	}
}

func TestResolveRunTargets_EmptyPlanYieldsEmptySet(t *testing.T) {
	index := BuildStepAssetIndex([]AssetProducer{
		{Key: "orders", StepKeys: []StepKey{"load_orders"}},
	})

	targets := ResolveRunTargets(UnconstrainedSelection(), nil, index)
	if len(targets) != 0 {
		t.Fatalf("targets = %#v, want empty", targets)
	}
}

func TestResolveRunTargets_EmptyExplicitSelection(t *testing.T) {
	// An explicit empty selection is not the same as no selection.
	index := BuildStepAssetIndex([]AssetProducer{
		{Key: "orders", StepKeys: []StepKey{"load_orders"}},
	})

	targets := ResolveRunTargets(SelectionOf(), []StepKey{"load_orders"}, index)
	if len(targets) != 0 {
		t.Fatalf("targets = %#v, want empty", targets)
	}
}
