package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/preicfes/preicfes-lms/internal/apperr"
	authmw "github.com/preicfes/preicfes-lms/internal/auth/middleware"
	"github.com/preicfes/preicfes-lms/internal/progress"
)

var validate = validator.New()

// RecordLessonProgressHandler handles POST /lesson-progress/{lessonID}.
// The subject comes from the already-validated JWT.
func RecordLessonProgressHandler(tracker *progress.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			writeError(w, apperr.AccessDeniedf("no subject in token"))
			return
		}

		var sig progress.Signals
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			writeError(w, apperr.Validationf("bad json"))
			return
		}
		if err := validate.Struct(sig); err != nil {
			writeError(w, apperr.Validationf("invalid payload: %v", err))
			return
		}
		if sig.CorrectAnswers > sig.TotalQuestions {
			writeError(w, apperr.Validationf("correct_answers exceeds total_questions"))
			return
		}

		res, err := tracker.RecordProgress(r.Context(), userID, lessonID, sig)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
