package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/preicfes/preicfes-lms/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses in one place.
func writeError(w http.ResponseWriter, err error) {
	var conflict *apperr.StateConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":             conflict.Error(),
			"completed_lessons": conflict.CompletedLessons,
			"total_lessons":     conflict.TotalLessons,
			"progress_pct":      conflict.ProgressPct,
		})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
