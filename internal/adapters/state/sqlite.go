package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowmetric/assetpulse/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteStore implements core.Store with SQLite storage.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed run store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	s := &SQLiteStore{dbPath: dbPath}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate runs pending migrations.
func (s *SQLiteStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}

	return nil
}

// GetAssetEntries returns entries for the given keys; keys without an entry
// are omitted.
func (s *SQLiteStore) GetAssetEntries(ctx context.Context, keys []core.AssetKey) ([]core.AssetEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(keys) == 0 {
		return nil, nil
	}

	query := "SELECT asset_key, last_run_id, last_materialization FROM asset_entries WHERE asset_key IN (" +
		placeholders(len(keys)) + ")"
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = string(k)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying asset entries: %w", err)
	}
	defer rows.Close()

	var entries []core.AssetEntry
	for rows.Next() {
		entry, err := scanAssetEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// ListAssetKeys returns every known asset key in sorted order.
func (s *SQLiteStore) ListAssetKeys(ctx context.Context) ([]core.AssetKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT asset_key FROM asset_entries ORDER BY asset_key")
	if err != nil {
		return nil, fmt.Errorf("listing asset keys: %w", err)
	}
	defer rows.Close()

	var keys []core.AssetKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning asset key: %w", err)
		}
		keys = append(keys, core.AssetKey(key))
	}
	return keys, rows.Err()
}

// GetRunRecords returns runs matching the filter, newest first. A non-empty
// cursor resumes after that run id; limit <= 0 means no limit.
func (s *SQLiteStore) GetRunRecords(ctx context.Context, filter core.RunsFilter, cursor core.RunID, limit int) ([]core.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT run_id, job_name, status, plan_snapshot_id, asset_selection, tags, created_at, updated_at FROM runs"
	where, args := buildRunsWhere(filter)

	if cursor != "" {
		where = append(where,
			"(created_at, run_id) < (SELECT created_at, run_id FROM runs WHERE run_id = ?)")
		args = append(args, string(cursor))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, run_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []core.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CountRuns returns the number of runs matching the filter.
func (s *SQLiteStore) CountRuns(ctx context.Context, filter core.RunsFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT COUNT(*) FROM runs"
	where, args := buildRunsWhere(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return count, nil
}

// GetExecutionPlanSnapshot returns the plan snapshot for the given id.
func (s *SQLiteStore) GetExecutionPlanSnapshot(ctx context.Context, snapshotID string) (*core.ExecutionPlanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stepKeysJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT step_keys FROM plan_snapshots WHERE snapshot_id = ?", snapshotID).Scan(&stepKeysJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("execution plan snapshot", snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying plan snapshot: %w", err)
	}

	var stepKeys []core.StepKey
	if err := json.Unmarshal([]byte(stepKeysJSON), &stepKeys); err != nil {
		return nil, core.ErrStorage(core.CodeStoreCorrupted, "malformed step keys").WithCause(err)
	}
	return &core.ExecutionPlanSnapshot{SnapshotID: snapshotID, StepKeysToExecute: stepKeys}, nil
}

// GetRunStepStats returns step stats for a run, optionally restricted to the
// given step keys.
func (s *SQLiteStore) GetRunStepStats(ctx context.Context, runID core.RunID, stepKeys []core.StepKey) ([]core.StepStatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT run_id, step_key, status, start_time, end_time, attempts FROM step_stats WHERE run_id = ?"
	args := []any{string(runID)}
	if len(stepKeys) > 0 {
		query += " AND step_key IN (" + placeholders(len(stepKeys)) + ")"
		for _, k := range stepKeys {
			args = append(args, string(k))
		}
	}
	query += " ORDER BY step_key"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying step stats: %w", err)
	}
	defer rows.Close()

	var stats []core.StepStatsSnapshot
	for rows.Next() {
		stat, err := scanStepStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *stat)
	}
	return stats, rows.Err()
}

// GetRunTags returns the distinct tag values observed per key across all runs.
func (s *SQLiteStore) GetRunTags(ctx context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT tags FROM runs")
	if err != nil {
		return nil, fmt.Errorf("querying run tags: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]map[string]bool)
	for rows.Next() {
		var tagsJSON string
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, fmt.Errorf("scanning run tags: %w", err)
		}
		var tags map[string]string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			return nil, core.ErrStorage(core.CodeStoreCorrupted, "malformed run tags").WithCause(err)
		}
		for k, v := range tags {
			if seen[k] == nil {
				seen[k] = make(map[string]bool)
			}
			seen[k][v] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
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
func (s *SQLiteStore) UpsertRun(ctx context.Context, run *core.RunRecord, targetAssets []core.AssetKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	selectionJSON, err := marshalSelection(run.Selection)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(run.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	if run.Tags == nil {
		tagsJSON = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, job_name, status, plan_snapshot_id, asset_selection, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			job_name = excluded.job_name,
			status = excluded.status,
			plan_snapshot_id = excluded.plan_snapshot_id,
			asset_selection = excluded.asset_selection,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		string(run.ID), run.JobName, string(run.Status), run.PlanSnapshotID,
		selectionJSON, string(tagsJSON),
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	// last_run_id is stamped at run creation so liveness can find pending
	// runs before any output exists.
	for _, key := range targetAssets {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO asset_entries (asset_key, last_run_id)
			VALUES (?, ?)
			ON CONFLICT(asset_key) DO UPDATE SET last_run_id = excluded.last_run_id`,
			string(key), string(run.ID))
		if err != nil {
			return fmt.Errorf("stamping asset entry %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// SavePlanSnapshot stores an execution plan snapshot.
func (s *SQLiteStore) SavePlanSnapshot(ctx context.Context, snapshot *core.ExecutionPlanSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepKeysJSON, err := json.Marshal(snapshot.StepKeysToExecute)
	if err != nil {
		return fmt.Errorf("marshaling step keys: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plan_snapshots (snapshot_id, step_keys)
		VALUES (?, ?)
		ON CONFLICT(snapshot_id) DO UPDATE SET step_keys = excluded.step_keys`,
		snapshot.SnapshotID, string(stepKeysJSON))
	if err != nil {
		return fmt.Errorf("saving plan snapshot: %w", err)
	}
	return nil
}

// UpsertStepStats inserts or updates step stats for a run.
func (s *SQLiteStore) UpsertStepStats(ctx context.Context, runID core.RunID, stats []core.StepStatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stat := range stats {
		attempts := stat.Attempts
		if attempts <= 0 {
			attempts = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_stats (run_id, step_key, status, start_time, end_time, attempts)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, step_key) DO UPDATE SET
				status = excluded.status,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				attempts = excluded.attempts`,
			string(runID), string(stat.StepKey), string(stat.Status),
			nullableTime(stat.StartTime), nullableTime(stat.EndTime), attempts)
		if err != nil {
			return fmt.Errorf("upserting step stats for %s: %w", stat.StepKey, err)
		}
	}

	return tx.Commit()
}

// RecordMaterialization records an asset output and updates its entry.
func (s *SQLiteStore) RecordMaterialization(ctx context.Context, key core.AssetKey, mat *core.Materialization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matJSON, err := json.Marshal(mat)
	if err != nil {
		return fmt.Errorf("marshaling materialization: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO asset_entries (asset_key, last_run_id, last_materialization)
		VALUES (?, ?, ?)
		ON CONFLICT(asset_key) DO UPDATE SET
			last_run_id = excluded.last_run_id,
			last_materialization = excluded.last_materialization`,
		string(key), string(mat.RunID), string(matJSON))
	if err != nil {
		return fmt.Errorf("recording materialization for %s: %w", key, err)
	}
	return nil
}

func buildRunsWhere(filter core.RunsFilter) ([]string, []any) {
	var where []string
	var args []any

	if len(filter.RunIDs) > 0 {
		where = append(where, "run_id IN ("+placeholders(len(filter.RunIDs))+")")
		for _, id := range filter.RunIDs {
			args = append(args, string(id))
		}
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.JobName != "" {
		where = append(where, "job_name = ?")
		args = append(args, filter.JobName)
	}
	return where, args
}

func scanRun(rows *sql.Rows) (*core.RunRecord, error) {
	var (
		runID, jobName, status, planSnapshotID string
		selection                              sql.NullString
		tagsJSON                               string
		createdAt, updatedAt                   string
	)
	if err := rows.Scan(&runID, &jobName, &status, &planSnapshotID, &selection, &tagsJSON, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	rec := &core.RunRecord{
		ID:             core.RunID(runID),
		JobName:        jobName,
		Status:         core.RunStatus(status),
		PlanSnapshotID: planSnapshotID,
	}

	sel, err := unmarshalSelection(selection)
	if err != nil {
		return nil, err
	}
	rec.Selection = sel

	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, core.ErrStorage(core.CodeStoreCorrupted, "malformed run tags").WithCause(err)
	}
	if len(rec.Tags) == 0 {
		rec.Tags = nil
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

func scanStepStats(rows *sql.Rows) (*core.StepStatsSnapshot, error) {
	var (
		runID, stepKey, status string
		startTime, endTime     sql.NullString
		attempts               int
	)
	if err := rows.Scan(&runID, &stepKey, &status, &startTime, &endTime, &attempts); err != nil {
		return nil, fmt.Errorf("scanning step stats: %w", err)
	}

	stat := &core.StepStatsSnapshot{
		RunID:    core.RunID(runID),
		StepKey:  core.StepKey(stepKey),
		Status:   core.StepStatus(status),
		Attempts: attempts,
	}

	var err error
	if stat.StartTime, err = parseNullableTime(startTime); err != nil {
		return nil, err
	}
	if stat.EndTime, err = parseNullableTime(endTime); err != nil {
		return nil, err
	}
	return stat, nil
}

func scanAssetEntry(rows *sql.Rows) (*core.AssetEntry, error) {
	var (
		assetKey, lastRunID string
		matJSON             sql.NullString
	)
	if err := rows.Scan(&assetKey, &lastRunID, &matJSON); err != nil {
		return nil, fmt.Errorf("scanning asset entry: %w", err)
	}

	entry := &core.AssetEntry{
		Key:       core.AssetKey(assetKey),
		LastRunID: core.RunID(lastRunID),
	}
	if matJSON.Valid {
		var mat core.Materialization
		if err := json.Unmarshal([]byte(matJSON.String), &mat); err != nil {
			return nil, core.ErrStorage(core.CodeStoreCorrupted, "malformed materialization").WithCause(err)
		}
		entry.LastMaterialization = &mat
	}
	return entry, nil
}

func marshalSelection(sel core.AssetSelection) (sql.NullString, error) {
	if !sel.IsConstrained() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(sel.Keys())
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling asset selection: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalSelection(raw sql.NullString) (core.AssetSelection, error) {
	if !raw.Valid {
		return core.UnconstrainedSelection(), nil
	}
	var keys []core.AssetKey
	if err := json.Unmarshal([]byte(raw.String), &keys); err != nil {
		return core.AssetSelection{}, core.ErrStorage(core.CodeStoreCorrupted, "malformed asset selection").WithCause(err)
	}
	return core.SelectionOf(keys...), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, core.ErrStorage(core.CodeStoreCorrupted, "malformed timestamp").WithCause(err)
	}
	return t, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullableTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
