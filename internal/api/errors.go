package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps a classified apierr.Error to the HTTP status table in
// §6/§7; unclassified errors default to 500.
func writeError(w http.ResponseWriter, err error) {
	var classified *apierr.Error
	if errors.As(err, &classified) {
		writeJSON(w, statusForKind(classified.Kind), errorResponse{
			Error: classified.Error(),
			Kind:  string(classified.Kind),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
