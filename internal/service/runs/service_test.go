package runs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/testutil"
)

func TestGet(t *testing.T) {
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{
		{ID: "run-1", JobName: "nightly", Status: core.RunStatusSuccess},
	}
	svc := NewService(store)

	run, err := svc.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, core.RunID("run-1"), run.ID)
	assert.Equal(t, "nightly", run.JobName)
}

func TestGetNotFound(t *testing.T) {
	svc := NewService(testutil.NewStubStore())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestListForwardsFilter(t *testing.T) {
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{
		{ID: "run-1", Status: core.RunStatusStarted},
		{ID: "run-2", Status: core.RunStatusSuccess},
		{ID: "run-3", Status: core.RunStatusStarted},
	}
	svc := NewService(store)

	runs, err := svc.List(context.Background(), core.RunsFilter{
		Statuses: []core.RunStatus{core.RunStatusStarted},
	}, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, core.RunID("run-1"), runs[0].ID)
	assert.Equal(t, core.RunID("run-3"), runs[1].ID)
}

func TestCount(t *testing.T) {
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{
		{ID: "run-1", JobName: "nightly", Status: core.RunStatusSuccess},
		{ID: "run-2", JobName: "hourly", Status: core.RunStatusSuccess},
	}
	svc := NewService(store)

	count, err := svc.Count(context.Background(), core.RunsFilter{JobName: "nightly"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStepStats(t *testing.T) {
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{{ID: "run-1", Status: core.RunStatusStarted}}
	store.StepStats["run-1"] = []core.StepStatsSnapshot{
		{RunID: "run-1", StepKey: "step_a", Status: core.StepStatusInProgress},
		{RunID: "run-1", StepKey: "step_b", Status: core.StepStatusSuccess},
	}
	svc := NewService(store)

	stats, err := svc.StepStats(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestStepStatsUnknownRun(t *testing.T) {
	svc := NewService(testutil.NewStubStore())

	_, err := svc.StepStats(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestTagsFiltersHidden(t *testing.T) {
	store := testutil.NewStubStore()
	store.Tags = map[string][]string{
		"team":          {"data", "ml"},
		"env":           {"prod"},
		".internal/ref": {"abc123"},
	}
	svc := NewService(store)

	tags, err := svc.Tags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "env", tags[0].Key)
	assert.Equal(t, "team", tags[1].Key)
	assert.Equal(t, []string{"data", "ml"}, tags[1].Values)
}

func TestLatestRuns(t *testing.T) {
	now := time.Now()
	store := testutil.NewStubStore()
	store.Entries = []core.AssetEntry{
		{Key: "warehouse/users", LastRunID: "run-2"},
		{Key: "warehouse/orders", LastRunID: "run-1"},
		{Key: "warehouse/empty"},
	}
	store.Runs = []core.RunRecord{
		{ID: "run-1", Status: core.RunStatusSuccess, CreatedAt: now},
		{ID: "run-2", Status: core.RunStatusStarted, CreatedAt: now},
	}
	svc := NewService(store)

	latest, err := svc.LatestRuns(context.Background(), []core.AssetKey{
		"warehouse/users", "warehouse/orders", "warehouse/empty",
	})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, core.RunID("run-2"), latest["warehouse/users"].ID)
	assert.Equal(t, core.RunID("run-1"), latest["warehouse/orders"].ID)
}

func TestLatestRunsNoEntries(t *testing.T) {
	svc := NewService(testutil.NewStubStore())

	latest, err := svc.LatestRuns(context.Background(), []core.AssetKey{"warehouse/users"})
	require.NoError(t, err)
	assert.Empty(t, latest)
	assert.Zero(t, svc.store.(*testutil.StubStore).CallCount("GetRunRecords"))
}
