package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/events"
	"github.com/flowmetric/assetpulse/internal/logging"
	"github.com/flowmetric/assetpulse/internal/testutil"
)

func newTestServer(t *testing.T, store *testutil.StubStore) *Server {
	t.Helper()
	bus := events.New(16)
	t.Cleanup(bus.Close)
	return NewServer(store, bus, WithLogger(logging.NewNop()))
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubStore())

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestAssetLiveness(t *testing.T) {
	store := testutil.NewStubStore()
	store.Entries = []core.AssetEntry{
		{Key: "warehouse/users", LastRunID: "run-1"},
	}
	store.Runs = []core.RunRecord{
		{
			ID:             "run-1",
			Status:         core.RunStatusStarted,
			PlanSnapshotID: "snap-1",
			Selection:      core.UnconstrainedSelection(),
		},
	}
	store.Snapshots["snap-1"] = &core.ExecutionPlanSnapshot{
		SnapshotID:        "snap-1",
		StepKeysToExecute: []core.StepKey{"build_users"},
	}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/assets/liveness", LivenessRequest{
		Producers: []core.AssetProducer{
			{Key: "warehouse/users", StepKeys: []core.StepKey{"build_users"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, core.AssetKey("warehouse/users"), resp.Assets[0].Key)
	assert.Equal(t, []core.RunID{"run-1"}, resp.Assets[0].UnstartedRunIDs)
	assert.Empty(t, resp.Assets[0].InProgressRunIDs)
}

func TestAssetLivenessRejectsEmptyKey(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/assets/liveness", LivenessRequest{
		Producers: []core.AssetProducer{{Key: ""}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAssetsFuzzyFilter(t *testing.T) {
	store := testutil.NewStubStore()
	store.Entries = []core.AssetEntry{
		{Key: "warehouse/users"},
		{Key: "warehouse/orders"},
		{Key: "reports/daily"},
	}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/assets/?q=daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AssetKeys []core.AssetKey `json:"asset_keys"`
		Count     int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, core.AssetKey("reports/daily"), body.AssetKeys[0])
}

func TestGetRunNotFound(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubStore())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertRunGeneratesID(t *testing.T) {
	store := testutil.NewStubStore()
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs/", UpsertRunRequest{
		JobName:      "nightly",
		Status:       core.RunStatusQueued,
		Selection:    core.SelectionOf("warehouse/users"),
		TargetAssets: []core.AssetKey{"warehouse/users"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var run core.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.NotEmpty(t, run.ID)

	require.Len(t, store.Entries, 1)
	assert.Equal(t, run.ID, store.Entries[0].LastRunID)
}

func TestUpsertRunRejectsUnknownStatus(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs/", map[string]string{
		"status": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertRunPreservesCreatedAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{
		{ID: "run-1", Status: core.RunStatusQueued, CreatedAt: created},
	}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs/", UpsertRunRequest{
		RunID:  "run-1",
		Status: core.RunStatusStarted,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var run core.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.True(t, run.CreatedAt.Equal(created))
	assert.Equal(t, core.RunStatusStarted, run.Status)
}

func TestListRunsStatusFilter(t *testing.T) {
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{
		{ID: "run-1", Status: core.RunStatusStarted},
		{ID: "run-2", Status: core.RunStatusSuccess},
	}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs/?status=started", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs  []core.RunRecord `json:"runs"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, core.RunID("run-1"), body.Runs[0].ID)
}

func TestListRunsRejectsUnknownStatus(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubStore())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs/?status=bogus", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCountRuns(t *testing.T) {
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{
		{ID: "run-1", JobName: "nightly", Status: core.RunStatusSuccess},
		{ID: "run-2", JobName: "nightly", Status: core.RunStatusFailure},
		{ID: "run-3", JobName: "hourly", Status: core.RunStatusSuccess},
	}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs/count?job=nightly", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body["count"])
}

func TestStepStatsRoundTrip(t *testing.T) {
	store := testutil.NewStubStore()
	store.Runs = []core.RunRecord{{ID: "run-1", Status: core.RunStatusStarted}}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs/run-1/steps", StepStatsRequest{
		Steps: []core.StepStatsSnapshot{
			{StepKey: "build_users", Status: core.StepStatusInProgress},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/runs/run-1/steps", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Steps []core.StepStatsSnapshot `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Steps, 1)
	assert.Equal(t, core.RunID("run-1"), body.Steps[0].RunID)
	assert.Equal(t, core.StepKey("build_users"), body.Steps[0].StepKey)
}

func TestStepStatsUnknownRun(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs/missing/steps", StepStatsRequest{
		Steps: []core.StepStatsSnapshot{
			{StepKey: "build_users", Status: core.StepStatusSuccess},
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTagsHideSystemTags(t *testing.T) {
	store := testutil.NewStubStore()
	store.Tags = map[string][]string{
		"team":     {"data"},
		".tracker": {"x"},
	}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tags []struct {
			Key string `json:"key"`
		} `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tags, 1)
	assert.Equal(t, "team", body.Tags[0].Key)
}

func TestRecordMaterialization(t *testing.T) {
	store := testutil.NewStubStore()
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/assets/materializations", MaterializationRequest{
		AssetKey: "warehouse/users",
		RunID:    "run-1",
		StepKey:  "build_users",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, store.Entries, 1)
	require.NotNil(t, store.Entries[0].LastMaterialization)
	assert.Equal(t, core.RunID("run-1"), store.Entries[0].LastMaterialization.RunID)
}

func TestSavePlanSnapshot(t *testing.T) {
	store := testutil.NewStubStore()
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/snapshots", core.ExecutionPlanSnapshot{
		SnapshotID:        "snap-1",
		StepKeysToExecute: []core.StepKey{"build_users"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, store.Snapshots, "snap-1")
}

func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", core.ErrNotFound("run", "x"), http.StatusNotFound},
		{"validation", core.ErrValidation("bad", "bad input"), http.StatusUnprocessableEntity},
		{"storage", core.ErrStorage("io", "disk broke"), http.StatusInternalServerError},
		{"state", core.ErrState("conflict", "stale"), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, ok := httpStatusForDomainError(tc.err)
			require.True(t, ok)
			assert.Equal(t, tc.want, status)
		})
	}
}
