package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/preicfes/preicfes-lms/internal/progress"
)

// StudentProgressHandler handles GET /users/{userID}/progress: the module
// progress overview a teacher sees for one student.
func StudentProgressHandler(progStore progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		modules, err := progStore.ListModuleProgress(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if modules == nil {
			modules = []progress.ModuleProgress{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id": userID,
			"modules": modules,
		})
	}
}
