// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"sync"

	"github.com/flowmetric/assetpulse/internal/core"
)

// StubStore implements core.RunStore from in-memory fixtures and records
// every call so tests can assert on access patterns (notably that step stats
// are never fetched for runs that have not started executing).
type StubStore struct {
	mu    sync.Mutex
	calls []StubCall

	Entries   []core.AssetEntry
	Runs      []core.RunRecord
	Snapshots map[string]*core.ExecutionPlanSnapshot
	StepStats map[core.RunID][]core.StepStatsSnapshot
	Tags      map[string][]string

	// Err, when set, is returned by every method.
	Err error
}

// StubCall records a call to the stub.
type StubCall struct {
	Method string
	Args   interface{}
}

// NewStubStore creates an empty stub store.
func NewStubStore() *StubStore {
	return &StubStore{
		Snapshots: make(map[string]*core.ExecutionPlanSnapshot),
		StepStats: make(map[core.RunID][]core.StepStatsSnapshot),
	}
}

// Calls returns the names of all recorded calls in order.
func (s *StubStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.calls))
	for i, c := range s.calls {
		names[i] = c.Method
	}
	return names
}

// CallCount returns how many times the named method was called.
func (s *StubStore) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

func (s *StubStore) record(method string, args interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, StubCall{Method: method, Args: args})
}

// GetAssetEntries returns the fixture entries matching the given keys.
func (s *StubStore) GetAssetEntries(_ context.Context, keys []core.AssetKey) ([]core.AssetEntry, error) {
	s.record("GetAssetEntries", keys)
	if s.Err != nil {
		return nil, s.Err
	}
	wanted := make(map[core.AssetKey]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}
	var entries []core.AssetEntry
	for _, e := range s.Entries {
		if wanted[e.Key] {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ListAssetKeys returns the keys of all fixture entries.
func (s *StubStore) ListAssetKeys(_ context.Context) ([]core.AssetKey, error) {
	s.record("ListAssetKeys", nil)
	if s.Err != nil {
		return nil, s.Err
	}
	keys := make([]core.AssetKey, 0, len(s.Entries))
	for _, e := range s.Entries {
		keys = append(keys, e.Key)
	}
	return keys, nil
}

// GetRunRecords returns fixture runs matching the filter.
func (s *StubStore) GetRunRecords(_ context.Context, filter core.RunsFilter, _ core.RunID, _ int) ([]core.RunRecord, error) {
	s.record("GetRunRecords", filter)
	if s.Err != nil {
		return nil, s.Err
	}
	wantIDs := make(map[core.RunID]bool, len(filter.RunIDs))
	for _, id := range filter.RunIDs {
		wantIDs[id] = true
	}
	wantStatuses := make(map[core.RunStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		wantStatuses[st] = true
	}
	var runs []core.RunRecord
	for _, r := range s.Runs {
		if len(wantIDs) > 0 && !wantIDs[r.ID] {
			continue
		}
		if len(wantStatuses) > 0 && !wantStatuses[r.Status] {
			continue
		}
		if filter.JobName != "" && r.JobName != filter.JobName {
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// CountRuns counts fixture runs matching the filter.
func (s *StubStore) CountRuns(ctx context.Context, filter core.RunsFilter) (int, error) {
	s.record("CountRuns", filter)
	if s.Err != nil {
		return 0, s.Err
	}
	runs, err := s.GetRunRecords(ctx, filter, "", 0)
	return len(runs), err
}

// GetExecutionPlanSnapshot returns the fixture snapshot or a not-found error.
func (s *StubStore) GetExecutionPlanSnapshot(_ context.Context, snapshotID string) (*core.ExecutionPlanSnapshot, error) {
	s.record("GetExecutionPlanSnapshot", snapshotID)
	if s.Err != nil {
		return nil, s.Err
	}
	snapshot, ok := s.Snapshots[snapshotID]
	if !ok {
		return nil, core.ErrNotFound("execution plan snapshot", snapshotID)
	}
	return snapshot, nil
}

// GetRunStepStats returns fixture stats for the run.
func (s *StubStore) GetRunStepStats(_ context.Context, runID core.RunID, _ []core.StepKey) ([]core.StepStatsSnapshot, error) {
	s.record("GetRunStepStats", runID)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.StepStats[runID], nil
}

// GetRunTags returns the fixture tags.
func (s *StubStore) GetRunTags(_ context.Context) (map[string][]string, error) {
	s.record("GetRunTags", nil)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Tags, nil
}

// UpsertRun inserts or replaces the run in the fixtures and stamps last_run_id
// on the target asset entries.
func (s *StubStore) UpsertRun(_ context.Context, run *core.RunRecord, targetAssets []core.AssetKey) error {
	s.record("UpsertRun", run.ID)
	if s.Err != nil {
		return s.Err
	}
	replaced := false
	for i, r := range s.Runs {
		if r.ID == run.ID {
			s.Runs[i] = *run
			replaced = true
			break
		}
	}
	if !replaced {
		s.Runs = append(s.Runs, *run)
	}
	for _, key := range targetAssets {
		found := false
		for i := range s.Entries {
			if s.Entries[i].Key == key {
				s.Entries[i].LastRunID = run.ID
				found = true
				break
			}
		}
		if !found {
			s.Entries = append(s.Entries, core.AssetEntry{Key: key, LastRunID: run.ID})
		}
	}
	return nil
}

// SavePlanSnapshot stores the snapshot in the fixtures.
func (s *StubStore) SavePlanSnapshot(_ context.Context, snapshot *core.ExecutionPlanSnapshot) error {
	s.record("SavePlanSnapshot", snapshot.SnapshotID)
	if s.Err != nil {
		return s.Err
	}
	s.Snapshots[snapshot.SnapshotID] = snapshot
	return nil
}

// UpsertStepStats replaces matching step stats for the run.
func (s *StubStore) UpsertStepStats(_ context.Context, runID core.RunID, stats []core.StepStatsSnapshot) error {
	s.record("UpsertStepStats", runID)
	if s.Err != nil {
		return s.Err
	}
	existing := s.StepStats[runID]
	for _, stat := range stats {
		replaced := false
		for i, e := range existing {
			if e.StepKey == stat.StepKey {
				existing[i] = stat
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, stat)
		}
	}
	s.StepStats[runID] = existing
	return nil
}

// RecordMaterialization updates the asset entry to point at the output.
func (s *StubStore) RecordMaterialization(_ context.Context, key core.AssetKey, mat *core.Materialization) error {
	s.record("RecordMaterialization", key)
	if s.Err != nil {
		return s.Err
	}
	for i := range s.Entries {
		if s.Entries[i].Key == key {
			s.Entries[i].LastMaterialization = mat
			return nil
		}
	}
	s.Entries = append(s.Entries, core.AssetEntry{Key: key, LastMaterialization: mat})
	return nil
}
