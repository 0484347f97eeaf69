package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/events"
)

// LivenessRequest asks for liveness resolution over a set of assets and the
// step keys that can produce them.
type LivenessRequest struct {
	Producers []core.AssetProducer `json:"producers"`
}

// LivenessResponse carries per-asset liveness in producer order.
type LivenessResponse struct {
	Assets []core.AssetLiveness `json:"assets"`
}

// handleAssetLiveness resolves the latest materialization and pending run
// sets for the requested assets.
func (s *Server) handleAssetLiveness(w http.ResponseWriter, r *http.Request) {
	var req LivenessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	for _, p := range req.Producers {
		if p.Key == "" {
			s.respondError(w, http.StatusBadRequest, "producer asset_key must not be empty")
			return
		}
	}

	results, err := s.resolver.Resolve(r.Context(), req.Producers)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, LivenessResponse{Assets: results})
}

// handleListAssets lists known asset keys, optionally fuzzy-filtered by ?q=.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.ListAssetKeys(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = string(k)
		}
		matches := fuzzy.Find(q, names)
		filtered := make([]core.AssetKey, len(matches))
		for i, m := range matches {
			filtered[i] = core.AssetKey(m.Str)
		}
		keys = filtered
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"asset_keys": keys,
		"count":      len(keys),
	})
}

// MaterializationRequest records a produced asset output.
type MaterializationRequest struct {
	AssetKey    core.AssetKey     `json:"asset_key"`
	RunID       core.RunID        `json:"run_id"`
	StepKey     core.StepKey      `json:"step_key,omitempty"`
	Timestamp   *time.Time        `json:"timestamp,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleRecordMaterialization(w http.ResponseWriter, r *http.Request) {
	var req MaterializationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AssetKey == "" {
		s.respondError(w, http.StatusBadRequest, "asset_key is required")
		return
	}
	if req.RunID == "" {
		s.respondError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	mat := &core.Materialization{
		RunID:       req.RunID,
		StepKey:     req.StepKey,
		Timestamp:   ts,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	if err := s.store.RecordMaterialization(r.Context(), req.AssetKey, mat); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.eventBus.Publish(events.NewAssetMaterializedEvent(req.AssetKey, mat))
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"asset_key": req.AssetKey,
		"run_id":    req.RunID,
	})
}
