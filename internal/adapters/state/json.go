package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/fsutil"
)

// JSONStore implements core.Store with a single JSON file. It trades query
// performance for zero native dependencies; intended for small local
// deployments and tests.
type JSONStore struct {
	path string
	mu   sync.RWMutex
}

// jsonEnvelope is the on-disk layout.
type jsonEnvelope struct {
	Version      int                                     `json:"version"`
	UpdatedAt    time.Time                               `json:"updated_at"`
	Runs         map[core.RunID]*core.RunRecord          `json:"runs"`
	Snapshots    map[string]*core.ExecutionPlanSnapshot  `json:"plan_snapshots"`
	StepStats    map[core.RunID][]core.StepStatsSnapshot `json:"step_stats"`
	AssetEntries map[core.AssetKey]*core.AssetEntry      `json:"asset_entries"`
}

// NewJSONStore creates a new JSON file store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Close is a no-op for the JSON store.
func (s *JSONStore) Close() error { return nil }

func newEnvelope() *jsonEnvelope {
	return &jsonEnvelope{
		Version:      1,
		Runs:         make(map[core.RunID]*core.RunRecord),
		Snapshots:    make(map[string]*core.ExecutionPlanSnapshot),
		StepStats:    make(map[core.RunID][]core.StepStatsSnapshot),
		AssetEntries: make(map[core.AssetKey]*core.AssetEntry),
	}
}

// load reads the envelope; a missing file yields an empty envelope.
func (s *JSONStore) load() (*jsonEnvelope, error) {
	data, err := fsutil.ReadFileScoped(s.path)
	if os.IsNotExist(err) {
		return newEnvelope(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	env := newEnvelope()
	if err := json.Unmarshal(data, env); err != nil {
		return nil, core.ErrStorage(core.CodeStoreCorrupted, "malformed state file").WithCause(err)
	}
	return env, nil
}

// save writes the envelope atomically.
func (s *JSONStore) save(env *jsonEnvelope) error {
	env.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// GetAssetEntries returns entries for the given keys; keys without an entry
// are omitted.
func (s *JSONStore) GetAssetEntries(_ context.Context, keys []core.AssetKey) ([]core.AssetEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}

	var entries []core.AssetEntry
	for _, key := range keys {
		if entry, ok := env.AssetEntries[key]; ok {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

// ListAssetKeys returns every known asset key in sorted order.
func (s *JSONStore) ListAssetKeys(_ context.Context) ([]core.AssetKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}

	keys := make([]core.AssetKey, 0, len(env.AssetEntries))
	for key := range env.AssetEntries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// GetRunRecords returns runs matching the filter, newest first.
func (s *JSONStore) GetRunRecords(_ context.Context, filter core.RunsFilter, cursor core.RunID, limit int) ([]core.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}

	matched := filterRuns(env, filter)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if cursor != "" {
		start := len(matched)
		for i, rec := range matched {
			if rec.ID == cursor {
				start = i + 1
				break
			}
		}
		matched = matched[start:]
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// CountRuns returns the number of runs matching the filter.
func (s *JSONStore) CountRuns(_ context.Context, filter core.RunsFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(filterRuns(env, filter)), nil
}

// GetExecutionPlanSnapshot returns the plan snapshot for the given id.
func (s *JSONStore) GetExecutionPlanSnapshot(_ context.Context, snapshotID string) (*core.ExecutionPlanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}

	snapshot, ok := env.Snapshots[snapshotID]
	if !ok {
		return nil, core.ErrNotFound("execution plan snapshot", snapshotID)
	}
	copied := *snapshot
	return &copied, nil
}

// GetRunStepStats returns step stats for a run, optionally restricted to the
// given step keys.
func (s *JSONStore) GetRunStepStats(_ context.Context, runID core.RunID, stepKeys []core.StepKey) ([]core.StepStatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}

	all := env.StepStats[runID]
	if len(stepKeys) == 0 {
		return append([]core.StepStatsSnapshot(nil), all...), nil
	}

	wanted := make(map[core.StepKey]bool, len(stepKeys))
	for _, k := range stepKeys {
		wanted[k] = true
	}
	var stats []core.StepStatsSnapshot
	for _, stat := range all {
		if wanted[stat.StepKey] {
			stats = append(stats, stat)
		}
	}
	return stats, nil
}

// GetRunTags returns the distinct tag values observed per key across all runs.
func (s *JSONStore) GetRunTags(_ context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]map[string]bool)
	for _, run := range env.Runs {
		for k, v := range run.Tags {
			if seen[k] == nil {
				seen[k] = make(map[string]bool)
			}
			seen[k][v] = true
		}
	}

	result := make(map[string][]string, len(seen))
	for k, values := range seen {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		result[k] = list
	}
	return result, nil
}

// UpsertRun inserts or updates a run record and stamps last_run_id on the
// targeted asset entries.
func (s *JSONStore) UpsertRun(_ context.Context, run *core.RunRecord, targetAssets []core.AssetKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}

	copied := *run
	env.Runs[run.ID] = &copied

	for _, key := range targetAssets {
		entry, ok := env.AssetEntries[key]
		if !ok {
			entry = &core.AssetEntry{Key: key}
			env.AssetEntries[key] = entry
		}
		entry.LastRunID = run.ID
	}

	return s.save(env)
}

// SavePlanSnapshot stores an execution plan snapshot.
func (s *JSONStore) SavePlanSnapshot(_ context.Context, snapshot *core.ExecutionPlanSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}

	copied := *snapshot
	env.Snapshots[snapshot.SnapshotID] = &copied
	return s.save(env)
}

// UpsertStepStats inserts or updates step stats for a run.
func (s *JSONStore) UpsertStepStats(_ context.Context, runID core.RunID, stats []core.StepStatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}

	existing := env.StepStats[runID]
	byKey := make(map[core.StepKey]int, len(existing))
	for i, stat := range existing {
		byKey[stat.StepKey] = i
	}
	for _, stat := range stats {
		stat.RunID = runID
		if stat.Attempts <= 0 {
			stat.Attempts = 1
		}
		if i, ok := byKey[stat.StepKey]; ok {
			existing[i] = stat
		} else {
			byKey[stat.StepKey] = len(existing)
			existing = append(existing, stat)
		}
	}
	env.StepStats[runID] = existing

	return s.save(env)
}

// RecordMaterialization records an asset output and updates its entry.
func (s *JSONStore) RecordMaterialization(_ context.Context, key core.AssetKey, mat *core.Materialization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}

	copied := *mat
	entry, ok := env.AssetEntries[key]
	if !ok {
		entry = &core.AssetEntry{Key: key}
		env.AssetEntries[key] = entry
	}
	entry.LastRunID = mat.RunID
	entry.LastMaterialization = &copied

	return s.save(env)
}

func filterRuns(env *jsonEnvelope, filter core.RunsFilter) []core.RunRecord {
	wantIDs := make(map[core.RunID]bool, len(filter.RunIDs))
	for _, id := range filter.RunIDs {
		wantIDs[id] = true
	}
	wantStatuses := make(map[core.RunStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		wantStatuses[st] = true
	}

	var matched []core.RunRecord
	for _, run := range env.Runs {
		if len(wantIDs) > 0 && !wantIDs[run.ID] {
			continue
		}
		if len(wantStatuses) > 0 && !wantStatuses[run.Status] {
			continue
		}
		if filter.JobName != "" && run.JobName != filter.JobName {
			continue
		}
		matched = append(matched, *run)
	}
	return matched
}
