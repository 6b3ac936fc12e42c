package api

import (
	"net/http"
)

func (s *Server) handleGenerationStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       snap,
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
