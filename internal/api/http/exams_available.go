package http

import (
	"net/http"

	"github.com/preicfes/preicfes-lms/internal/apperr"
	authmw "github.com/preicfes/preicfes-lms/internal/auth/middleware"
	"github.com/preicfes/preicfes-lms/internal/exam"
)

// AvailableExamsHandler handles GET /exams/available. Advisory only: the
// open/close window is reported, the attempt-start endpoint enforces it.
func AvailableExamsHandler(resolver *exam.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			writeError(w, apperr.AccessDeniedf("no subject in token"))
			return
		}
		list, err := resolver.Resolve(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []exam.Availability{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"exams": list})
	}
}
