package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/preicfes/preicfes-lms/internal/apperr"
	authmw "github.com/preicfes/preicfes-lms/internal/auth/middleware"
	"github.com/preicfes/preicfes-lms/internal/exam"
	"github.com/preicfes/preicfes-lms/internal/progress"
	"github.com/preicfes/preicfes-lms/internal/quiz"
)

type moduleRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListModuleQuizzesHandler handles GET /modules/{moduleID}/quizzes.
func ListModuleQuizzesHandler(examStore *exam.SQLStore, progStore progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		moduleID := chi.URLParam(r, "moduleID")
		userID := authmw.SubjectFromContext(r.Context())

		title, err := examStore.ModuleTitle(r.Context(), moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		quizzes, err := examStore.ListModuleQuizzes(r.Context(), moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		if quizzes == nil {
			quizzes = []exam.Exam{}
		}
		mp, err := progStore.GetModuleProgress(r.Context(), userID, moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"module":              moduleRef{ID: moduleID, Title: title},
			"quizzes":             quizzes,
			"is_module_completed": mp != nil && mp.ProgressPct >= 100,
		})
	}
}

// GenerateModuleQuizHandler handles POST /modules/{moduleID}/quizzes: the
// on-demand variant. Same idempotency contract as the cascade path, but
// no notification, and the module must be complete first.
func GenerateModuleQuizHandler(gen *quiz.Generator, examStore *exam.SQLStore, progStore progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		moduleID := chi.URLParam(r, "moduleID")
		userID := authmw.SubjectFromContext(r.Context())

		if _, err := examStore.ModuleTitle(r.Context(), moduleID); err != nil {
			writeError(w, err)
			return
		}

		// Fresh recount, not the cached module_progress row.
		total, err := progStore.CountModuleLessons(r.Context(), moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		completed, err := progStore.CountCompletedLessons(r.Context(), userID, moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		if total == 0 || completed < total {
			pct := 0
			if total > 0 {
				pct = completed * 100 / total
			}
			writeError(w, &apperr.StateConflictError{
				CompletedLessons: completed,
				TotalLessons:     total,
				ProgressPct:      pct,
			})
			return
		}

		courseID, err := progStore.CourseForModule(r.Context(), moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := gen.Generate(r.Context(), courseID, moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
