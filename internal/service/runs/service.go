// Package runs provides read operations over stored run records: single-run
// lookup, filtered listing, tag enumeration, and latest-run-per-asset
// queries.
package runs

import (
	"context"
	"sort"

	"github.com/flowmetric/assetpulse/internal/core"
)

// Service answers run queries against a run store.
type Service struct {
	store core.RunStore
}

// NewService creates a run query service.
func NewService(store core.RunStore) *Service {
	return &Service{store: store}
}

// Get fetches a single run by id. A missing run yields a not-found
// DomainError rather than a nil record.
func (s *Service) Get(ctx context.Context, runID core.RunID) (*core.RunRecord, error) {
	records, err := s.store.GetRunRecords(ctx, core.RunsFilter{RunIDs: []core.RunID{runID}}, "", 0)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrNotFound("run", string(runID))
	}
	return &records[0], nil
}

// List returns runs matching the filter, newest first, resuming after cursor
// when non-empty and returning at most limit records when limit > 0.
func (s *Service) List(ctx context.Context, filter core.RunsFilter, cursor core.RunID, limit int) ([]core.RunRecord, error) {
	return s.store.GetRunRecords(ctx, filter, cursor, limit)
}

// Count returns the number of runs matching the filter.
func (s *Service) Count(ctx context.Context, filter core.RunsFilter) (int, error) {
	return s.store.CountRuns(ctx, filter)
}

// StepStats returns the step stats recorded for a run. The run must exist;
// a run with no stats yields an empty slice.
func (s *Service) StepStats(ctx context.Context, runID core.RunID) ([]core.StepStatsSnapshot, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.GetRunStepStats(ctx, runID, nil)
}

// TagAndValues pairs a run tag key with its observed values.
type TagAndValues struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// Tags returns the visible run tags and their distinct values, sorted by
// key. System-managed (hidden) tags are filtered out.
func (s *Service) Tags(ctx context.Context) ([]TagAndValues, error) {
	raw, err := s.store.GetRunTags(ctx)
	if err != nil {
		return nil, err
	}

	tags := make([]TagAndValues, 0, len(raw))
	for key, values := range raw {
		if core.IsHiddenTag(key) {
			continue
		}
		tags = append(tags, TagAndValues{Key: key, Values: values})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags, nil
}

// LatestRuns returns, per asset key, the run that most recently targeted it.
// Assets with no entry or no recorded run are omitted.
func (s *Service) LatestRuns(ctx context.Context, keys []core.AssetKey) (map[core.AssetKey]core.RunRecord, error) {
	entries, err := s.store.GetAssetEntries(ctx, keys)
	if err != nil {
		return nil, err
	}

	latestRunIDByAsset := make(map[core.AssetKey]core.RunID, len(entries))
	runIDSet := make(map[core.RunID]bool)
	for _, entry := range entries {
		if entry.LastRunID != "" {
			latestRunIDByAsset[entry.Key] = entry.LastRunID
			runIDSet[entry.LastRunID] = true
		}
	}
	if len(runIDSet) == 0 {
		return nil, nil
	}

	runIDs := make([]core.RunID, 0, len(runIDSet))
	for id := range runIDSet {
		runIDs = append(runIDs, id)
	}
	records, err := s.store.GetRunRecords(ctx, core.RunsFilter{RunIDs: runIDs}, "", 0)
	if err != nil {
		return nil, err
	}
	recordsByID := make(map[core.RunID]core.RunRecord, len(records))
	for _, rec := range records {
		recordsByID[rec.ID] = rec
	}

	result := make(map[core.AssetKey]core.RunRecord, len(latestRunIDByAsset))
	for key, runID := range latestRunIDByAsset {
		if rec, ok := recordsByID[runID]; ok {
			result[key] = rec
		}
	}
	return result, nil
}
