package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/events"
)

const defaultRunPageSize = 50

// runsFilterFromQuery builds a run filter from list query parameters.
func runsFilterFromQuery(r *http.Request) (core.RunsFilter, error) {
	var filter core.RunsFilter
	q := r.URL.Query()

	if job := q.Get("job"); job != "" {
		filter.JobName = job
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status := core.RunStatus(part)
			if !core.IsValidRunStatus(status) {
				return filter, core.ErrValidation("invalid_status", "unknown run status: "+part)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	for _, raw := range q["run_id"] {
		filter.RunIDs = append(filter.RunIDs, core.RunID(raw))
	}
	return filter, nil
}

// handleListRuns lists runs newest first with cursor pagination.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter, err := runsFilterFromQuery(r)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	limit := defaultRunPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}
	cursor := core.RunID(r.URL.Query().Get("cursor"))

	records, err := s.runs.List(r.Context(), filter, cursor, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	nextCursor := ""
	if len(records) == limit {
		nextCursor = string(records[len(records)-1].ID)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":        records,
		"count":       len(records),
		"next_cursor": nextCursor,
	})
}

// handleCountRuns returns the number of runs matching the filter.
func (s *Server) handleCountRuns(w http.ResponseWriter, r *http.Request) {
	filter, err := runsFilterFromQuery(r)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	count, err := s.runs.Count(r.Context(), filter)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// handleGetRun fetches a single run by id.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := core.RunID(chi.URLParam(r, "runID"))
	run, err := s.runs.Get(r.Context(), runID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

// handleGetRunSteps returns the step stats recorded for a run.
func (s *Server) handleGetRunSteps(w http.ResponseWriter, r *http.Request) {
	runID := core.RunID(chi.URLParam(r, "runID"))
	stats, err := s.runs.StepStats(r.Context(), runID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"steps":  stats,
	})
}

// handleRunTags returns the visible run tags and their values.
func (s *Server) handleRunTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.runs.Tags(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// UpsertRunRequest creates or updates a run record.
type UpsertRunRequest struct {
	RunID          core.RunID          `json:"run_id,omitempty"`
	JobName        string              `json:"job_name,omitempty"`
	Status         core.RunStatus      `json:"status"`
	PlanSnapshotID string              `json:"plan_snapshot_id,omitempty"`
	Selection      core.AssetSelection `json:"asset_selection"`
	Tags           map[string]string   `json:"tags,omitempty"`
	TargetAssets   []core.AssetKey     `json:"target_assets,omitempty"`
}

// handleUpsertRun ingests a run record. A missing run_id gets a generated
// one; target assets get their entries stamped with it.
func (s *Server) handleUpsertRun(w http.ResponseWriter, r *http.Request) {
	var req UpsertRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !core.IsValidRunStatus(req.Status) {
		s.respondError(w, http.StatusBadRequest, "unknown run status: "+string(req.Status))
		return
	}
	if req.RunID == "" {
		req.RunID = core.RunID(uuid.NewString())
	}

	now := time.Now().UTC()
	run := &core.RunRecord{
		ID:             req.RunID,
		JobName:        req.JobName,
		Status:         req.Status,
		PlanSnapshotID: req.PlanSnapshotID,
		Selection:      req.Selection,
		Tags:           req.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if existing, err := s.runs.Get(r.Context(), req.RunID); err == nil {
		run.CreatedAt = existing.CreatedAt
	} else if !core.IsNotFound(err) {
		s.respondDomainError(w, err)
		return
	}

	if err := s.store.UpsertRun(r.Context(), run, req.TargetAssets); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.eventBus.Publish(events.NewRunUpsertedEvent(run))
	s.respondJSON(w, http.StatusCreated, run)
}

// StepStatsRequest records step-level execution stats for a run.
type StepStatsRequest struct {
	Steps []core.StepStatsSnapshot `json:"steps"`
}

func (s *Server) handleUpsertStepStats(w http.ResponseWriter, r *http.Request) {
	runID := core.RunID(chi.URLParam(r, "runID"))
	var req StepStatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	for i := range req.Steps {
		req.Steps[i].RunID = runID
		if req.Steps[i].StepKey == "" {
			s.respondError(w, http.StatusBadRequest, "step_key is required")
			return
		}
		if !core.IsValidStepStatus(req.Steps[i].Status) {
			s.respondError(w, http.StatusBadRequest, "unknown step status: "+string(req.Steps[i].Status))
			return
		}
	}

	if _, err := s.runs.Get(r.Context(), runID); err != nil {
		s.respondDomainError(w, err)
		return
	}
	if err := s.store.UpsertStepStats(r.Context(), runID, req.Steps); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.eventBus.Publish(events.NewStepStatsUpdatedEvent(runID, req.Steps))
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"run_id": runID,
		"count":  len(req.Steps),
	})
}

// handleSavePlanSnapshot stores an execution plan snapshot.
func (s *Server) handleSavePlanSnapshot(w http.ResponseWriter, r *http.Request) {
	var snapshot core.ExecutionPlanSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if snapshot.SnapshotID == "" {
		snapshot.SnapshotID = uuid.NewString()
	}

	if err := s.store.SavePlanSnapshot(r.Context(), &snapshot); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, snapshot)
}
