package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dd0wney/cluso-twinsec/pkg/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// handleLatestSnapshot serves the most recently committed snapshot
func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Latest()
	if snap == nil {
		s.writeError(w, http.StatusNotFound, "no snapshot committed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleHistory serves the retained snapshots, oldest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.History())
}

// handleFleetScore serves the latest fleet-level score
func (s *Server) handleFleetScore(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Latest()
	if snap == nil {
		s.writeError(w, http.StatusNotFound, "no snapshot committed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap.FleetScore)
}

// handleReport serves the run summary so far
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Report())
}

// handleApplyRecommendation applies one pending recommendation. The
// posture change takes effect on the next tick.
func (s *Server) handleApplyRecommendation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := s.engine.ApplyRecommendation(id)
	if err != nil {
		s.logger.Warn("recommendation apply failed",
			logging.String("recommendation_id", id),
			logging.Error(err),
		)
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"recommendation_id": id,
		"result":            string(result),
	})
}

// handleControl maps pause/resume/stop onto the engine state machine.
// Invalid transitions return 409 rather than mutating anything.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	var err error
	switch action {
	case "pause":
		err = s.engine.Pause()
	case "resume":
		err = s.engine.Resume()
	case "stop":
		s.engine.Stop()
	default:
		s.writeError(w, http.StatusNotFound, "unknown control action")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"action": action,
		"state":  string(s.engine.State()),
	})
}
