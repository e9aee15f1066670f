package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
	"github.com/beacon-checkin/beacon-checkin-server/internal/scan"
)

// HandleHealth reports liveness
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    s.config.Server.Name,
		"version": s.config.Server.Version,
	})
}

// HandleScannerStatus reports the session state
func (s *RESTServer) HandleScannerStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"state": s.session.State().String(),
	})
}

// HandleScannerStart loads the registry snapshot and starts the scan
// session. Starting an already-scanning session is a no-op, mirroring
// the session semantics.
func (s *RESTServer) HandleScannerStart(w http.ResponseWriter, r *http.Request) {
	registry, err := LoadRegistry(r.Context(), s.store)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load registry snapshot")
		s.respondError(w, http.StatusInternalServerError, "failed to load registry")
		return
	}

	switch err := s.session.Start(registry); {
	case err == nil:
		s.respondJSON(w, http.StatusOK, map[string]string{
			"state": s.session.State().String(),
		})
	case errors.Is(err, scan.ErrNoTargets):
		s.respondError(w, http.StatusBadRequest, "no target beacons configured")
	case errors.Is(err, scan.ErrAdapterUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, "bluetooth adapter unavailable")
	default:
		s.respondError(w, http.StatusBadRequest, err.Error())
	}
}

// HandleScannerStop stops the scan session; stopping an idle session
// is a no-op.
func (s *RESTServer) HandleScannerStop(w http.ResponseWriter, r *http.Request) {
	s.session.Stop()
	s.respondJSON(w, http.StatusOK, map[string]string{
		"state": s.session.State().String(),
	})
}

// HandleListBeacons lists the beacon registry
func (s *RESTServer) HandleListBeacons(w http.ResponseWriter, r *http.Request) {
	beacons, err := s.store.ListBeacons(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list beacons")
		s.respondError(w, http.StatusInternalServerError, "failed to list beacons")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"beacons": beacons,
		"total":   len(beacons),
	})
}

// HandleListCampaigns lists the campaign registry
func (s *RESTServer) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListCampaigns(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list campaigns")
		s.respondError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"total":     len(campaigns),
	})
}

// HandleCampaignEligibility probes the eligibility evaluator for one
// campaign, at the current local time or at an RFC 3339 "at" override.
func (s *RESTServer) HandleCampaignEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	now := time.Now()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid 'at' timestamp")
			return
		}
		now = parsed.Local()
	}

	campaigns, err := s.store.ListCampaigns(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list campaigns")
		s.respondError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	var target *models.CampaignDescriptor
	for i := range campaigns {
		if campaigns[i].ID == id {
			target = &campaigns[i]
			break
		}
	}
	if target == nil {
		s.respondError(w, http.StatusNotFound, "campaign not found")
		return
	}

	resp := map[string]interface{}{
		"campaignId":                 target.ID,
		"at":                         now.Format(time.RFC3339),
		"allowed":                    s.evaluator.IsAllowedNow(target, now),
		"effectivePresencePercentage": s.evaluator.EffectivePresencePercentage(target, now),
	}

	if block, ok := s.evaluator.CurrentTimeBlock(target, now); ok {
		resp["currentBlock"] = block
	}

	if block, dayOffset, ok := s.evaluator.NextWindow(target, now); ok {
		resp["nextWindow"] = map[string]interface{}{
			"block":     block,
			"dayOffset": dayOffset,
		}
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// HandleListDetections lists recent detection log entries
func (s *RESTServer) HandleListDetections(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	if limit < 1 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.store.ListDetectionLogs(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list detection logs")
		s.respondError(w, http.StatusInternalServerError, "failed to list detections")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"detections": entries,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
