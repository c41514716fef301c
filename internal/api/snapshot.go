package api

import (
	"net/http"
	"strings"
)

// handleSnapshot is the GET /snapshot-data/{snapshotId}?prompt=… debug
// passthrough to provider A's snapshot store (§6): returns the single
// matching entry or 404.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.snapshots == nil {
		http.Error(w, "snapshot debug endpoint unavailable", http.StatusNotFound)
		return
	}

	snapshotID := strings.TrimPrefix(r.URL.Path, "/snapshot-data/")
	snapshotID = strings.Trim(snapshotID, "/")
	if snapshotID == "" {
		http.Error(w, "snapshot id is required", http.StatusBadRequest)
		return
	}
	prompt := r.URL.Query().Get("prompt")

	entry, found, err := s.snapshots.FetchSnapshotEntry(r.Context(), snapshotID, prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "no matching snapshot entry", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
